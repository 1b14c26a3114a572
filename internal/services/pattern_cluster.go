package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/openai"
	"github.com/AbhiraajV/brainlm-backend/internal/clients/redis"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
	"github.com/AbhiraajV/brainlm-backend/internal/vecmath"
)

const (
	clusterSimilarityThreshold = 0.75
	clusterMinSize             = 3
	centroidReinforceThreshold = 0.8
	defaultBackfillLookback    = 180
)

// BackfillResult summarizes one batch clustering run.
type BackfillResult struct {
	InterpretationsSeen int `json:"interpretations_seen"`
	Clusters            int `json:"clusters"`
	Reinforced          int `json:"reinforced"`
	Created             int `json:"created"`
}

// PatternBackfillService is the batch fallback for users with history that
// predates event-driven detection. It clusters embedded interpretations from
// a lookback window and folds each cluster into the existing pattern set.
type PatternBackfillService interface {
	BackfillUser(ctx context.Context, userID uuid.UUID) (*BackfillResult, error)
}

type patternBackfillService struct {
	log          *logger.Logger
	locker       redis.UserLocker
	interpRepo   repos.InterpretationRepo
	patternRepo  repos.PatternRepo
	ai           openai.Client
	versions     PatternVersionService
	lookbackDays int
}

// lookbackDays bounds the clustering window; <= 0 selects the default.
func NewPatternBackfillService(
	log *logger.Logger,
	locker redis.UserLocker,
	interpRepo repos.InterpretationRepo,
	patternRepo repos.PatternRepo,
	ai openai.Client,
	versions PatternVersionService,
	lookbackDays int,
) PatternBackfillService {
	if lookbackDays <= 0 {
		lookbackDays = defaultBackfillLookback
	}
	return &patternBackfillService{
		log:          log.With("service", "PatternBackfillService"),
		locker:       locker,
		interpRepo:   interpRepo,
		patternRepo:  patternRepo,
		ai:           ai,
		versions:     versions,
		lookbackDays: lookbackDays,
	}
}

type clusterMember struct {
	interp    *types.Interpretation
	embedding []float32
}

type cluster struct {
	members  []clusterMember
	centroid []float32
}

func (s *patternBackfillService) BackfillUser(ctx context.Context, userID uuid.UUID) (*BackfillResult, error) {
	release, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire user lock: %w", err)
	}
	defer release()

	since := time.Now().AddDate(0, 0, -s.lookbackDays)
	interps, err := s.interpRepo.GetWithEmbeddingsByUser(ctx, nil, userID, since)
	if err != nil {
		return nil, fmt.Errorf("load interpretations: %w", err)
	}
	members := make([]clusterMember, 0, len(interps))
	for _, interp := range interps {
		emb := types.DecodeEmbedding(interp.Embedding)
		if emb == nil {
			continue
		}
		members = append(members, clusterMember{interp: interp, embedding: emb})
	}

	result := &BackfillResult{InterpretationsSeen: len(members)}
	clusters := greedyCluster(members, clusterSimilarityThreshold, clusterMinSize)
	result.Clusters = len(clusters)
	if len(clusters) == 0 {
		return result, nil
	}

	actives, err := s.patternRepo.GetActiveByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load active patterns: %w", err)
	}

	for _, cl := range clusters {
		eventIDs := make([]uuid.UUID, 0, len(cl.members))
		for _, m := range cl.members {
			eventIDs = append(eventIDs, m.interp.EventID)
		}

		if match := bestCentroidMatch(actives, cl.centroid); match != nil {
			next, err := s.versions.Reinforce(ctx, match.ID, match.Description, eventIDs)
			if err != nil {
				return nil, fmt.Errorf("reinforce pattern %s: %w", match.ID, err)
			}
			replaceActive(actives, match.ID, next)
			result.Reinforced++
			continue
		}

		description := s.describeCluster(ctx, cl)
		created, err := s.versions.Create(ctx, userID, description, eventIDs)
		if err != nil {
			return nil, fmt.Errorf("create pattern from cluster: %w", err)
		}
		actives = append(actives, created)
		result.Created++
	}

	s.log.Info("backfill complete",
		"user_id", userID,
		"clusters", result.Clusters,
		"reinforced", result.Reinforced,
		"created", result.Created)
	return result, nil
}

const clusterOracleSystemPrompt = `You arbitrate behavioral memory for a personal journaling assistant.

Given interpreted life events that cluster together by embedding similarity, synthesize the single recurring behavioral pattern they share.

Rules:
- Always choose "create". The cluster matched no existing pattern.
- Write a complete, standalone markdown description of the pattern grounded in the listed events.
- Always fill description. Never leave it empty.`

// describeCluster synthesizes the cluster's pattern description through the
// same structured decision contract the per-event path uses. Any failure
// degrades to a stitched description so the cluster is still persisted.
func (s *patternBackfillService) describeCluster(ctx context.Context, cl cluster) string {
	var b strings.Builder
	b.WriteString("## Clustered interpretations\n")
	for i, m := range cl.members {
		if i >= 12 {
			break
		}
		b.WriteString("- ")
		b.WriteString(m.interp.Content)
		b.WriteString("\n")
	}

	raw, err := s.ai.GenerateJSON(ctx, clusterOracleSystemPrompt, b.String(), "pattern_decision", oracleDecisionSchema)
	if err == nil {
		decision, pErr := parseDecision(raw)
		switch {
		case pErr != nil:
			err = pErr
		case decision.Action != DecisionCreate:
			err = fmt.Errorf("cluster synthesis returned action %q", decision.Action)
		default:
			return decision.Description
		}
	}
	s.log.Warn("cluster description synthesis failed, using fallback", "error", err)
	return fmt.Sprintf("Recurring behavior across %d related events, including: %s", len(cl.members), cl.members[0].interp.Content)
}

// greedyCluster assigns each member to the first cluster whose centroid it
// exceeds the threshold against, recomputing the centroid on join. Clusters
// below minSize are discarded as noise.
func greedyCluster(members []clusterMember, threshold float64, minSize int) []cluster {
	var clusters []cluster
	for _, m := range members {
		placed := false
		for i := range clusters {
			if vecmath.CosineSimilarity(m.embedding, clusters[i].centroid) >= threshold {
				clusters[i].members = append(clusters[i].members, m)
				clusters[i].centroid = memberCentroid(clusters[i].members)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, cluster{
				members:  []clusterMember{m},
				centroid: m.embedding,
			})
		}
	}
	out := make([]cluster, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.members) >= minSize {
			out = append(out, cl)
		}
	}
	return out
}

func memberCentroid(members []clusterMember) []float32 {
	vectors := make([][]float32, 0, len(members))
	for _, m := range members {
		vectors = append(vectors, m.embedding)
	}
	return vecmath.Centroid(vectors)
}

func bestCentroidMatch(actives []*types.Pattern, centroid []float32) *types.Pattern {
	var best *types.Pattern
	bestSim := centroidReinforceThreshold
	for _, p := range actives {
		emb := types.DecodeEmbedding(p.Embedding)
		if emb == nil {
			continue
		}
		if sim := vecmath.CosineSimilarity(centroid, emb); sim >= bestSim {
			best = p
			bestSim = sim
		}
	}
	return best
}

func replaceActive(actives []*types.Pattern, oldID uuid.UUID, next *types.Pattern) {
	for i, p := range actives {
		if p.ID == oldID {
			actives[i] = next
			return
		}
	}
}
