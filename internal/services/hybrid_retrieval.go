package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
	"github.com/AbhiraajV/brainlm-backend/internal/vecmath"
)

// HybridWeights blends recency decay, semantic similarity and a
// type-specific bonus into one score.
type HybridWeights struct {
	Recency    float64
	Similarity float64
	Bonus      float64
}

type HybridConfig struct {
	K                  int
	TemporalAllocation float64
	SemanticAllocation float64
	SimilarityFloor    float64
	HalfLifeDays       float64
	NoEmbeddingPenalty float64
	Weights            HybridWeights
}

// Pattern relevance decays with disuse; insight and review relevance is
// mostly about topical fit. The weights reflect that.
func PatternHybridConfig(k int) HybridConfig {
	return HybridConfig{
		K:                  k,
		TemporalAllocation: 0.6,
		SemanticAllocation: 0.4,
		SimilarityFloor:    0.4,
		HalfLifeDays:       30,
		NoEmbeddingPenalty: 0.7,
		Weights:            HybridWeights{Recency: 0.5, Similarity: 0.3, Bonus: 0.2},
	}
}

func InsightHybridConfig(k int) HybridConfig {
	cfg := PatternHybridConfig(k)
	cfg.Weights = HybridWeights{Recency: 0.3, Similarity: 0.5, Bonus: 0.2}
	return cfg
}

func ReviewHybridConfig(k int) HybridConfig {
	cfg := PatternHybridConfig(k)
	cfg.Weights = HybridWeights{Recency: 0.35, Similarity: 0.55, Bonus: 0.1}
	return cfg
}

// MemoryObject is the type-erased shape the scorer ranks: one stored memory
// item (pattern, insight or prior review) with its anchor time and bonus.
type MemoryObject struct {
	ID        uuid.UUID
	Kind      string
	Content   string
	Embedding []float32
	AnchorAt  time.Time
	Bonus     float64
}

type ScoredMemoryObject struct {
	MemoryObject
	RecencyScore    float64
	SimilarityScore *float64
	HybridScore     float64
}

// recencyScore halves every halfLifeDays. Age zero scores exactly 1.
func recencyScore(ageDays, halfLifeDays float64) float64 {
	if ageDays <= 0 {
		return 1.0
	}
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	return math.Exp(-ageDays / halfLifeDays * math.Ln2)
}

// rankHybrid merges a temporal bucket and a semantic bucket into the top-K
// by blended score. The two buckets stay independent fetches merged through
// a map keyed by object id, so the no-embedding discount and the allocation
// ratios remain separately tunable.
func rankHybrid(now time.Time, windowEmbedding []float32, temporal []MemoryObject, semanticPool []MemoryObject, cfg HybridConfig) []ScoredMemoryObject {
	if cfg.K <= 0 {
		return nil
	}
	temporalCap := int(math.Ceil(float64(cfg.K) * cfg.TemporalAllocation))
	semanticCap := int(math.Ceil(float64(cfg.K) * cfg.SemanticAllocation))

	ordered := make([]MemoryObject, len(temporal))
	copy(ordered, temporal)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AnchorAt.After(ordered[j].AnchorAt) })
	if len(ordered) > temporalCap {
		ordered = ordered[:temporalCap]
	}

	type semanticHit struct {
		obj MemoryObject
		sim float64
	}
	var semantic []semanticHit
	if len(windowEmbedding) > 0 {
		for _, obj := range semanticPool {
			if len(obj.Embedding) == 0 {
				continue
			}
			sim := vecmath.CosineSimilarity(windowEmbedding, obj.Embedding)
			if sim <= cfg.SimilarityFloor {
				continue
			}
			semantic = append(semantic, semanticHit{obj: obj, sim: sim})
		}
		sort.SliceStable(semantic, func(i, j int) bool { return semantic[i].sim > semantic[j].sim })
		if len(semantic) > semanticCap {
			semantic = semantic[:semanticCap]
		}
	}

	merged := map[uuid.UUID]*ScoredMemoryObject{}
	order := []uuid.UUID{}
	for _, obj := range ordered {
		merged[obj.ID] = &ScoredMemoryObject{MemoryObject: obj}
		order = append(order, obj.ID)
	}
	for _, hit := range semantic {
		sim := hit.sim
		if existing, ok := merged[hit.obj.ID]; ok {
			// Selected through both paths: scored once, similarity kept.
			existing.SimilarityScore = &sim
			continue
		}
		merged[hit.obj.ID] = &ScoredMemoryObject{MemoryObject: hit.obj, SimilarityScore: &sim}
		order = append(order, hit.obj.ID)
	}

	w := cfg.Weights
	out := make([]ScoredMemoryObject, 0, len(order))
	for _, id := range order {
		scored := merged[id]
		ageDays := now.Sub(scored.AnchorAt).Hours() / 24
		scored.RecencyScore = recencyScore(ageDays, cfg.HalfLifeDays)
		if scored.SimilarityScore != nil {
			scored.HybridScore = scored.RecencyScore*w.Recency + (*scored.SimilarityScore)*w.Similarity + scored.Bonus*w.Bonus
		} else {
			scored.HybridScore = scored.RecencyScore*cfg.NoEmbeddingPenalty*(w.Recency+w.Similarity) + scored.Bonus*w.Bonus
		}
		out = append(out, *scored)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		return out[i].RecencyScore > out[j].RecencyScore
	})
	if len(out) > cfg.K {
		out = out[:cfg.K]
	}
	return out
}

// HybridRetrievalService selects the top-K memory objects of one type for a
// time window, per object type.
type HybridRetrievalService interface {
	WindowEmbedding(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]float32, error)
	SelectPatterns(ctx context.Context, userID uuid.UUID, from, to time.Time, windowEmbedding []float32, k int) ([]ScoredMemoryObject, error)
	SelectInsights(ctx context.Context, userID uuid.UUID, from, to time.Time, windowEmbedding []float32, k int) ([]ScoredMemoryObject, error)
	SelectReviews(ctx context.Context, userID uuid.UUID, from, to time.Time, windowEmbedding []float32, k int) ([]ScoredMemoryObject, error)
}

type hybridRetrievalService struct {
	log         *logger.Logger
	interpRepo  repos.InterpretationRepo
	patternRepo repos.PatternRepo
	insightRepo repos.InsightRepo
	reviewRepo  repos.ReviewRepo
}

func NewHybridRetrievalService(
	log *logger.Logger,
	interpRepo repos.InterpretationRepo,
	patternRepo repos.PatternRepo,
	insightRepo repos.InsightRepo,
	reviewRepo repos.ReviewRepo,
) HybridRetrievalService {
	return &hybridRetrievalService{
		log:         log.With("service", "HybridRetrievalService"),
		interpRepo:  interpRepo,
		patternRepo: patternRepo,
		insightRepo: insightRepo,
		reviewRepo:  reviewRepo,
	}
}

// WindowEmbedding is the unit-normalized centroid of all interpretation
// embeddings inside the window; nil when none carry embeddings.
func (s *hybridRetrievalService) WindowEmbedding(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]float32, error) {
	interps, err := s.interpRepo.GetInWindow(ctx, nil, userID, from, to)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, 0, len(interps))
	for _, interp := range interps {
		if emb := types.DecodeEmbedding(interp.Embedding); emb != nil {
			vectors = append(vectors, emb)
		}
	}
	return vecmath.Centroid(vectors), nil
}

func (s *hybridRetrievalService) SelectPatterns(ctx context.Context, userID uuid.UUID, from, to time.Time, windowEmbedding []float32, k int) ([]ScoredMemoryObject, error) {
	cfg := PatternHybridConfig(k)
	temporalCap := int(math.Ceil(float64(k) * cfg.TemporalAllocation))

	var temporal, pool []*types.Pattern
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		temporal, err = s.patternRepo.GetTemporalCandidates(gctx, nil, userID, from, to, temporalCap)
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = s.patternRepo.GetActiveByUser(gctx, nil, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rankHybrid(time.Now(), windowEmbedding, patternsToObjects(temporal), patternsToObjects(pool), cfg), nil
}

func (s *hybridRetrievalService) SelectInsights(ctx context.Context, userID uuid.UUID, from, to time.Time, windowEmbedding []float32, k int) ([]ScoredMemoryObject, error) {
	cfg := InsightHybridConfig(k)
	temporalCap := int(math.Ceil(float64(k) * cfg.TemporalAllocation))

	var temporal, pool []*types.Insight
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		temporal, err = s.insightRepo.GetTemporalCandidates(gctx, nil, userID, from, to, temporalCap)
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = s.insightRepo.GetActiveByUser(gctx, nil, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rankHybrid(time.Now(), windowEmbedding, insightsToObjects(temporal), insightsToObjects(pool), cfg), nil
}

func (s *hybridRetrievalService) SelectReviews(ctx context.Context, userID uuid.UUID, from, to time.Time, windowEmbedding []float32, k int) ([]ScoredMemoryObject, error) {
	cfg := ReviewHybridConfig(k)
	temporalCap := int(math.Ceil(float64(k) * cfg.TemporalAllocation))

	var temporal, pool []*types.Review
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		temporal, err = s.reviewRepo.GetTemporalCandidates(gctx, nil, userID, from, to, temporalCap)
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = s.reviewRepo.GetByUser(gctx, nil, userID, 50)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rankHybrid(time.Now(), windowEmbedding, reviewsToObjects(temporal), reviewsToObjects(pool), cfg), nil
}

func patternsToObjects(patterns []*types.Pattern) []MemoryObject {
	out := make([]MemoryObject, 0, len(patterns))
	for _, p := range patterns {
		bonus := 0.0
		if p.Status == types.PatternStatusActive {
			bonus = 1.0
		}
		out = append(out, MemoryObject{
			ID:        p.ID,
			Kind:      "pattern",
			Content:   p.Description,
			Embedding: types.DecodeEmbedding(p.Embedding),
			AnchorAt:  p.LastReinforcedAt,
			Bonus:     bonus,
		})
	}
	return out
}

func insightsToObjects(insights []*types.Insight) []MemoryObject {
	out := make([]MemoryObject, 0, len(insights))
	for _, ins := range insights {
		out = append(out, MemoryObject{
			ID:        ins.ID,
			Kind:      "insight",
			Content:   ins.Content,
			Embedding: types.DecodeEmbedding(ins.Embedding),
			AnchorAt:  ins.LastReinforcedAt,
			Bonus:     insightConfidenceBonus(ins.Confidence),
		})
	}
	return out
}

func insightConfidenceBonus(confidence string) float64 {
	switch confidence {
	case types.InsightConfidenceHigh:
		return 1.0
	case types.InsightConfidenceMedium:
		return 0.6
	case types.InsightConfidenceLow:
		return 0.3
	default:
		return 0.3
	}
}

func reviewsToObjects(reviews []*types.Review) []MemoryObject {
	out := make([]MemoryObject, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, MemoryObject{
			ID:        r.ID,
			Kind:      "review",
			Content:   r.Content,
			Embedding: types.DecodeEmbedding(r.Embedding),
			AnchorAt:  r.PeriodEnd,
			Bonus:     0,
		})
	}
	return out
}
