package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/redis"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
	"github.com/AbhiraajV/brainlm-backend/internal/vecmath"
)

const (
	candidateSimilarityFloor = 0.30
	candidateCap             = 5
	minEvidenceForOracle     = 2
	recentContextDays        = 7
	categoryContextLimit     = 10
)

const (
	OutcomeReinforced = "REINFORCED"
	OutcomeCreated    = "CREATED"
)

// PatternOutcome is what every successfully processed event produces. The
// engine never returns an empty result: when arbitration cannot run or the
// oracle misbehaves, the outcome is a freshly created emerging pattern.
type PatternOutcome struct {
	Kind      string    `json:"kind"`
	PatternID uuid.UUID `json:"pattern_id"`
	LineageID uuid.UUID `json:"lineage_id"`
	Reasoning string    `json:"reasoning"`
}

type PatternEngineService interface {
	ProcessEvent(ctx context.Context, eventID uuid.UUID) (*PatternOutcome, error)
}

type patternEngineService struct {
	log         *logger.Logger
	locker      redis.UserLocker
	eventRepo   repos.UserEventRepo
	interpRepo  repos.InterpretationRepo
	patternRepo repos.PatternRepo
	evidence    EvidenceSelector
	oracle      DecisionOracle
	versions    PatternVersionService
}

func NewPatternEngineService(
	log *logger.Logger,
	locker redis.UserLocker,
	eventRepo repos.UserEventRepo,
	interpRepo repos.InterpretationRepo,
	patternRepo repos.PatternRepo,
	evidence EvidenceSelector,
	oracle DecisionOracle,
	versions PatternVersionService,
) PatternEngineService {
	return &patternEngineService{
		log:         log.With("service", "PatternEngineService"),
		locker:      locker,
		eventRepo:   eventRepo,
		interpRepo:  interpRepo,
		patternRepo: patternRepo,
		evidence:    evidence,
		oracle:      oracle,
		versions:    versions,
	}
}

func (s *patternEngineService) ProcessEvent(ctx context.Context, eventID uuid.UUID) (*PatternOutcome, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "PatternEngine.ProcessEvent")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", eventID.String()))

	events, err := s.eventRepo.GetByIDs(ctx, nil, []uuid.UUID{eventID})
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	event := events[0]

	release, err := s.locker.Acquire(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("acquire user lock: %w", err)
	}
	defer release()

	interp, err := s.interpRepo.GetByEventID(ctx, nil, eventID)
	if err != nil {
		return nil, fmt.Errorf("load interpretation: %w", err)
	}
	if interp == nil {
		// Interpretation build failed upstream; the event still has to
		// land somewhere observable.
		s.log.Warn("no interpretation for event, creating emerging pattern", "event_id", eventID)
		return s.createEmerging(ctx, event, "recorded without interpretation")
	}
	triggerEmbedding := types.DecodeEmbedding(interp.Embedding)

	var (
		candidates []PatternCandidate
		evidence   []ScoredInterpretation
		sameDay    []*types.UserEvent
		recent     []*types.UserEvent
		inCategory []*types.UserEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		actives, err := s.patternRepo.GetActiveByUser(gctx, nil, event.UserID)
		if err != nil {
			return err
		}
		candidates = retrieveCandidates(actives, triggerEmbedding)
		return nil
	})
	g.Go(func() error {
		var err error
		evidence, err = s.evidence.SelectEvidence(gctx, event.UserID, triggerEmbedding)
		return err
	})
	g.Go(func() error {
		dayStart := event.OccurredAt.Truncate(24 * time.Hour)
		var err error
		sameDay, err = s.eventRepo.GetInWindow(gctx, nil, event.UserID, dayStart, dayStart.Add(24*time.Hour))
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.eventRepo.GetInWindow(gctx, nil, event.UserID, event.OccurredAt.AddDate(0, 0, -recentContextDays), event.OccurredAt)
		return err
	})
	g.Go(func() error {
		if event.Category == "" {
			return nil
		}
		var err error
		inCategory, err = s.eventRepo.GetByCategory(gctx, nil, event.UserID, event.Category, categoryContextLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gather decision context: %w", err)
	}

	if len(candidates) == 0 && len(evidence) < minEvidenceForOracle {
		return s.createEmerging(ctx, event, "first occurrence, no comparable history")
	}

	decision, err := s.oracle.Decide(ctx, DecisionInput{
		EventText:          event.Content,
		EventOccurredAt:    event.OccurredAt,
		EventCategory:      event.Category,
		InterpretationText: interp.Content,
		Candidates:         candidates,
		Evidence:           evidence,
		SameDayEvents:      sameDay,
		RecentEvents:       recent,
		CategoryEvents:     inCategory,
	})
	if err != nil {
		s.log.Warn("oracle failed, falling back to emerging pattern", "event_id", eventID, "error", err)
		return s.createEmerging(ctx, event, "arbitration unavailable")
	}
	if decision == nil {
		s.log.Warn("oracle returned no decision, falling back to emerging pattern", "event_id", eventID)
		return s.createEmerging(ctx, event, "arbitration returned nothing")
	}

	switch decision.Action {
	case DecisionReinforce:
		if !candidateSetContains(candidates, decision.PatternID) {
			s.log.Warn("oracle chose pattern outside candidate set", "event_id", eventID, "pattern_id", decision.PatternID)
			return s.createEmerging(ctx, event, "arbitration returned unknown pattern")
		}
		next, err := s.versions.Reinforce(ctx, decision.PatternID, decision.Description, []uuid.UUID{event.ID})
		if err != nil {
			return nil, fmt.Errorf("reinforce pattern: %w", err)
		}
		return &PatternOutcome{
			Kind:      OutcomeReinforced,
			PatternID: next.ID,
			LineageID: next.LineageID,
			Reasoning: decision.Reasoning,
		}, nil
	default:
		created, err := s.versions.Create(ctx, event.UserID, decision.Description, []uuid.UUID{event.ID})
		if err != nil {
			return nil, fmt.Errorf("create pattern: %w", err)
		}
		return &PatternOutcome{
			Kind:      OutcomeCreated,
			PatternID: created.ID,
			LineageID: created.LineageID,
			Reasoning: decision.Reasoning,
		}, nil
	}
}

// createEmerging records the event as a provisional pattern in its own
// words. Store failures are the only errors that escape.
func (s *patternEngineService) createEmerging(ctx context.Context, event *types.UserEvent, why string) (*PatternOutcome, error) {
	description := fmt.Sprintf("Emerging pattern: %s", event.Content)
	created, err := s.versions.Create(ctx, event.UserID, description, []uuid.UUID{event.ID})
	if err != nil {
		return nil, fmt.Errorf("create emerging pattern: %w", err)
	}
	return &PatternOutcome{
		Kind:      OutcomeCreated,
		PatternID: created.ID,
		LineageID: created.LineageID,
		Reasoning: why,
	}, nil
}

// retrieveCandidates ranks the user's active patterns against the trigger
// embedding and keeps the closest few above the floor. With no usable
// embedding on either side there are no candidates.
func retrieveCandidates(actives []*types.Pattern, triggerEmbedding []float32) []PatternCandidate {
	if len(triggerEmbedding) == 0 {
		return nil
	}
	out := make([]PatternCandidate, 0, len(actives))
	for _, p := range actives {
		emb := types.DecodeEmbedding(p.Embedding)
		if emb == nil {
			continue
		}
		sim := vecmath.CosineSimilarity(triggerEmbedding, emb)
		if sim < candidateSimilarityFloor {
			continue
		}
		out = append(out, PatternCandidate{Pattern: p, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > candidateCap {
		out = out[:candidateCap]
	}
	return out
}

func candidateSetContains(candidates []PatternCandidate, id uuid.UUID) bool {
	for _, c := range candidates {
		if c.Pattern.ID == id {
			return true
		}
	}
	return false
}
