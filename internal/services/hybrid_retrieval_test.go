package services

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRecencyScoreFreshIsOne(t *testing.T) {
	if got := recencyScore(0, 30); got != 1.0 {
		t.Fatalf("expected fresh item to score 1.0, got %f", got)
	}
	if got := recencyScore(-5, 30); got != 1.0 {
		t.Fatalf("expected future-dated item to score 1.0, got %f", got)
	}
}

func TestRecencyScoreHalvesAtHalfLife(t *testing.T) {
	got := recencyScore(30, 30)
	if math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("expected score 0.5 at half-life, got %f", got)
	}
}

func TestRecencyScoreStrictlyDecreasing(t *testing.T) {
	prev := recencyScore(0, 30)
	for age := 1.0; age <= 120; age += 7 {
		cur := recencyScore(age, 30)
		if cur >= prev {
			t.Fatalf("score did not decrease at age %f: %f >= %f", age, cur, prev)
		}
		prev = cur
	}
}

func TestRankHybridDedupsAcrossBuckets(t *testing.T) {
	now := time.Now()
	shared := MemoryObject{
		ID:        uuid.New(),
		Content:   "shows up in both buckets",
		Embedding: []float32{1, 0, 0},
		AnchorAt:  now.Add(-24 * time.Hour),
	}
	cfg := PatternHybridConfig(5)
	out := rankHybrid(now, []float32{1, 0, 0}, []MemoryObject{shared}, []MemoryObject{shared}, cfg)
	if len(out) != 1 {
		t.Fatalf("expected 1 merged result, got %d", len(out))
	}
	if out[0].SimilarityScore == nil {
		t.Fatalf("expected similarity populated on merged result")
	}
	if math.Abs(*out[0].SimilarityScore-1.0) > 1e-6 {
		t.Fatalf("expected similarity 1.0, got %f", *out[0].SimilarityScore)
	}
}

func TestRankHybridTemporalOnlyWithoutWindowEmbedding(t *testing.T) {
	now := time.Now()
	temporal := MemoryObject{ID: uuid.New(), AnchorAt: now.Add(-2 * time.Hour)}
	semanticOnly := MemoryObject{ID: uuid.New(), Embedding: []float32{1, 0}, AnchorAt: now.Add(-72 * time.Hour)}
	out := rankHybrid(now, nil, []MemoryObject{temporal}, []MemoryObject{semanticOnly}, PatternHybridConfig(5))
	if len(out) != 1 {
		t.Fatalf("expected only the temporal object, got %d results", len(out))
	}
	if out[0].ID != temporal.ID {
		t.Fatalf("expected temporal object to be selected")
	}
	if out[0].SimilarityScore != nil {
		t.Fatalf("expected no similarity without window embedding")
	}
}

func TestRankHybridEnforcesSimilarityFloor(t *testing.T) {
	now := time.Now()
	far := MemoryObject{ID: uuid.New(), Embedding: []float32{0, 1}, AnchorAt: now.Add(-400 * 24 * time.Hour)}
	out := rankHybrid(now, []float32{1, 0}, nil, []MemoryObject{far}, PatternHybridConfig(5))
	if len(out) != 0 {
		t.Fatalf("expected orthogonal object filtered by floor, got %d results", len(out))
	}
}

func TestRankHybridNoEmbeddingPenalty(t *testing.T) {
	now := time.Now()
	anchor := now.Add(-12 * time.Hour)
	bare := MemoryObject{ID: uuid.New(), AnchorAt: anchor}
	embedded := MemoryObject{ID: uuid.New(), Embedding: []float32{1, 0}, AnchorAt: anchor}
	cfg := PatternHybridConfig(5)
	out := rankHybrid(now, []float32{1, 0}, []MemoryObject{bare, embedded}, []MemoryObject{embedded}, cfg)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	// Same anchor time, perfect similarity: the embedded object must
	// outrank the penalized one.
	if out[0].ID != embedded.ID {
		t.Fatalf("expected embedded object ranked first")
	}
	var bareScored *ScoredMemoryObject
	for i := range out {
		if out[i].ID == bare.ID {
			bareScored = &out[i]
		}
	}
	if bareScored == nil {
		t.Fatalf("bare object missing from results")
	}
	w := cfg.Weights
	want := bareScored.RecencyScore * cfg.NoEmbeddingPenalty * (w.Recency + w.Similarity)
	if math.Abs(bareScored.HybridScore-want) > 1e-9 {
		t.Fatalf("penalized score mismatch: got %f want %f", bareScored.HybridScore, want)
	}
}

func TestRankHybridCapsAtK(t *testing.T) {
	now := time.Now()
	var temporal []MemoryObject
	for i := 0; i < 10; i++ {
		temporal = append(temporal, MemoryObject{
			ID:       uuid.New(),
			AnchorAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	out := rankHybrid(now, nil, temporal, nil, PatternHybridConfig(3))
	if len(out) != 3 {
		t.Fatalf("expected K=3 results, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].HybridScore > out[i-1].HybridScore {
			t.Fatalf("results not sorted by score at index %d", i)
		}
	}
}

func TestRankHybridBonusBreaksTies(t *testing.T) {
	now := time.Now()
	anchor := now.Add(-6 * time.Hour)
	plain := MemoryObject{ID: uuid.New(), AnchorAt: anchor}
	boosted := MemoryObject{ID: uuid.New(), AnchorAt: anchor, Bonus: 1.0}
	out := rankHybrid(now, nil, []MemoryObject{plain, boosted}, nil, PatternHybridConfig(2))
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].ID != boosted.ID {
		t.Fatalf("expected bonus-carrying object ranked first")
	}
}

func TestInsightConfidenceBonusTiers(t *testing.T) {
	cases := map[string]float64{
		"HIGH":    1.0,
		"MEDIUM":  0.6,
		"LOW":     0.3,
		"unknown": 0.3,
	}
	for confidence, want := range cases {
		if got := insightConfidenceBonus(confidence); got != want {
			t.Fatalf("confidence %q: got %f want %f", confidence, got, want)
		}
	}
}
