package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/pinecone"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
	"github.com/AbhiraajV/brainlm-backend/internal/vecmath"
)

const (
	evidenceRecentLimit     = 10
	evidenceHistoricalLimit = 15
	evidenceLinkedLimit     = 10
	evidenceResultCap       = 12
	evidenceHalfLifeDays    = 60.0
)

// ScoredInterpretation is one unit of grounding context handed to the
// decision oracle: the interpretation text, when it was written, and
// optionally the active pattern it was drawn from.
type ScoredInterpretation struct {
	InterpretationID uuid.UUID  `json:"interpretation_id"`
	Text             string     `json:"text"`
	CreatedAt        time.Time  `json:"created_at"`
	FromPatternID    *uuid.UUID `json:"from_pattern_id,omitempty"`
	Score            float64    `json:"score"`
}

// EvidenceSelector samples a small, representative set of past
// interpretations across the user's full timeline: the recent stream, the
// historically most similar entries, and entries already supporting active
// patterns. Recency alone would hide long-dormant recurring behaviors.
type EvidenceSelector interface {
	SelectEvidence(ctx context.Context, userID uuid.UUID, triggerEmbedding []float32) ([]ScoredInterpretation, error)
}

type evidenceSelector struct {
	log              *logger.Logger
	interpRepo       repos.InterpretationRepo
	patternRepo      repos.PatternRepo
	patternEventRepo repos.PatternEventRepo
	vectorStore      pinecone.VectorStore
}

func NewEvidenceSelector(
	log *logger.Logger,
	interpRepo repos.InterpretationRepo,
	patternRepo repos.PatternRepo,
	patternEventRepo repos.PatternEventRepo,
	vectorStore pinecone.VectorStore,
) EvidenceSelector {
	return &evidenceSelector{
		log:              log.With("service", "EvidenceSelector"),
		interpRepo:       interpRepo,
		patternRepo:      patternRepo,
		patternEventRepo: patternEventRepo,
		vectorStore:      vectorStore,
	}
}

func (s *evidenceSelector) SelectEvidence(ctx context.Context, userID uuid.UUID, triggerEmbedding []float32) ([]ScoredInterpretation, error) {
	var (
		recent     []*types.Interpretation
		historical []*types.Interpretation
		linked     []*types.Interpretation
		linkedBy   map[uuid.UUID]uuid.UUID
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = s.interpRepo.GetRecentByUser(gctx, nil, userID, evidenceRecentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		historical, err = s.selectHistorical(gctx, userID, triggerEmbedding)
		return err
	})
	g.Go(func() error {
		var err error
		linked, linkedBy, err = s.selectPatternLinked(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	byID := map[uuid.UUID]ScoredInterpretation{}
	add := func(interp *types.Interpretation, fromPattern *uuid.UUID) {
		if interp == nil {
			return
		}
		score := scoreInterpretation(interp, triggerEmbedding, now)
		existing, ok := byID[interp.ID]
		if ok && existing.Score >= score {
			if existing.FromPatternID == nil && fromPattern != nil {
				existing.FromPatternID = fromPattern
				byID[interp.ID] = existing
			}
			return
		}
		scored := ScoredInterpretation{
			InterpretationID: interp.ID,
			Text:             interp.Content,
			CreatedAt:        interp.CreatedAt,
			FromPatternID:    fromPattern,
			Score:            score,
		}
		if ok && existing.FromPatternID != nil && fromPattern == nil {
			scored.FromPatternID = existing.FromPatternID
		}
		byID[interp.ID] = scored
	}

	for _, interp := range recent {
		add(interp, nil)
	}
	for _, interp := range historical {
		add(interp, nil)
	}
	for _, interp := range linked {
		var from *uuid.UUID
		if pid, ok := linkedBy[interp.EventID]; ok {
			p := pid
			from = &p
		}
		add(interp, from)
	}

	out := make([]ScoredInterpretation, 0, len(byID))
	for _, scored := range byID {
		out = append(out, scored)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > evidenceResultCap {
		out = out[:evidenceResultCap]
	}
	return out, nil
}

// selectHistorical finds the interpretations most similar to the trigger
// across the full timeline. Pinecone when configured, in-Postgres scan
// otherwise.
func (s *evidenceSelector) selectHistorical(ctx context.Context, userID uuid.UUID, triggerEmbedding []float32) ([]*types.Interpretation, error) {
	if len(triggerEmbedding) == 0 {
		return nil, nil
	}

	if s.vectorStore != nil {
		matches, err := s.vectorStore.QueryMatches(ctx, userID.String(), triggerEmbedding, evidenceHistoricalLimit)
		if err == nil {
			ids := make([]uuid.UUID, 0, len(matches))
			for _, m := range matches {
				if id, pErr := uuid.Parse(m.ID); pErr == nil {
					ids = append(ids, id)
				}
			}
			return s.interpRepo.GetByIDs(ctx, nil, ids)
		}
		s.log.Warn("Pinecone query failed, falling back to Postgres scan", "user_id", userID, "error", err)
	}

	// Full-timeline scan: historical evidence has no lookback bound.
	all, err := s.interpRepo.GetWithEmbeddingsByUser(ctx, nil, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	type scored struct {
		interp *types.Interpretation
		sim    float64
	}
	ranked := make([]scored, 0, len(all))
	for _, interp := range all {
		emb := types.DecodeEmbedding(interp.Embedding)
		if emb == nil {
			continue
		}
		ranked = append(ranked, scored{interp: interp, sim: vecmath.CosineSimilarity(triggerEmbedding, emb)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if len(ranked) > evidenceHistoricalLimit {
		ranked = ranked[:evidenceHistoricalLimit]
	}
	out := make([]*types.Interpretation, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.interp)
	}
	return out, nil
}

// selectPatternLinked returns interpretations of events already supporting
// an ACTIVE pattern, with a back-reference keyed by event id.
func (s *evidenceSelector) selectPatternLinked(ctx context.Context, userID uuid.UUID) ([]*types.Interpretation, map[uuid.UUID]uuid.UUID, error) {
	actives, err := s.patternRepo.GetActiveByUser(ctx, nil, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(actives) == 0 {
		return nil, nil, nil
	}
	patternIDs := make([]uuid.UUID, 0, len(actives))
	for _, p := range actives {
		patternIDs = append(patternIDs, p.ID)
	}
	links, err := s.patternEventRepo.GetByPatternIDs(ctx, nil, patternIDs)
	if err != nil {
		return nil, nil, err
	}
	linkedBy := map[uuid.UUID]uuid.UUID{}
	eventIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		if _, seen := linkedBy[link.EventID]; seen {
			continue
		}
		linkedBy[link.EventID] = link.PatternID
		eventIDs = append(eventIDs, link.EventID)
		if len(eventIDs) >= evidenceLinkedLimit {
			break
		}
	}
	interps, err := s.interpRepo.GetByEventIDs(ctx, nil, eventIDs)
	if err != nil {
		return nil, nil, err
	}
	return interps, linkedBy, nil
}

func scoreInterpretation(interp *types.Interpretation, triggerEmbedding []float32, now time.Time) float64 {
	ageDays := now.Sub(interp.CreatedAt).Hours() / 24
	recency := recencyScore(ageDays, evidenceHalfLifeDays)
	emb := types.DecodeEmbedding(interp.Embedding)
	if len(triggerEmbedding) == 0 || emb == nil {
		return recency * 0.5
	}
	sim := vecmath.CosineSimilarity(triggerEmbedding, emb)
	return sim*0.7 + recency*0.3
}
