package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

func interpWith(userID uuid.UUID, content string, embedding []float32, age time.Duration) *types.Interpretation {
	return &types.Interpretation{
		ID:        uuid.New(),
		EventID:   uuid.New(),
		UserID:    userID,
		Content:   content,
		Embedding: types.EncodeEmbedding(embedding),
		CreatedAt: time.Now().Add(-age),
	}
}

func TestScoreInterpretationFavorsSimilarity(t *testing.T) {
	now := time.Now()
	trigger := []float32{1, 0}
	same := interpWith(uuid.New(), "close", []float32{1, 0}, time.Hour)
	same.CreatedAt = now.Add(-time.Hour)
	other := interpWith(uuid.New(), "far", []float32{0, 1}, time.Hour)
	other.CreatedAt = now.Add(-time.Hour)

	if scoreInterpretation(same, trigger, now) <= scoreInterpretation(other, trigger, now) {
		t.Fatalf("similar interpretation must outscore orthogonal one at equal age")
	}
}

func TestScoreInterpretationFavorsRecencyWithoutEmbeddings(t *testing.T) {
	now := time.Now()
	fresh := interpWith(uuid.New(), "fresh", nil, 0)
	fresh.CreatedAt = now
	stale := interpWith(uuid.New(), "stale", nil, 0)
	stale.CreatedAt = now.Add(-120 * 24 * time.Hour)

	if scoreInterpretation(fresh, nil, now) <= scoreInterpretation(stale, nil, now) {
		t.Fatalf("fresh interpretation must outscore stale one without embeddings")
	}
}

func TestSelectEvidenceDedupsAndKeepsPatternRef(t *testing.T) {
	log := testLogger(t)
	userID := uuid.New()
	trigger := []float32{1, 0}

	shared := interpWith(userID, "recurring avoidance", []float32{1, 0}, time.Hour)
	interps := &fakeInterpretationRepo{interps: []*types.Interpretation{shared}}

	pattern := activePattern(userID, []float32{1, 0})
	patterns := &fakePatternRepo{patterns: []*types.Pattern{pattern}}
	links := &fakePatternEventRepo{links: []*types.PatternEvent{{
		PatternID: pattern.ID,
		EventID:   shared.EventID,
	}}}

	selector := NewEvidenceSelector(log, interps, patterns, links, nil)
	got, err := selector.SelectEvidence(context.Background(), userID, trigger)
	if err != nil {
		t.Fatalf("SelectEvidence failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the shared interpretation deduped to 1 entry, got %d", len(got))
	}
	if got[0].FromPatternID == nil || *got[0].FromPatternID != pattern.ID {
		t.Fatalf("deduped entry must keep its pattern back-reference")
	}
}

func TestSelectEvidenceCapsResults(t *testing.T) {
	log := testLogger(t)
	userID := uuid.New()
	interps := &fakeInterpretationRepo{}
	for i := 0; i < 30; i++ {
		interps.interps = append(interps.interps, interpWith(userID, "entry", []float32{1, 0}, time.Duration(i)*time.Hour))
	}

	selector := NewEvidenceSelector(log, interps, &fakePatternRepo{}, &fakePatternEventRepo{}, nil)
	got, err := selector.SelectEvidence(context.Background(), userID, []float32{1, 0})
	if err != nil {
		t.Fatalf("SelectEvidence failed: %v", err)
	}
	if len(got) > evidenceResultCap {
		t.Fatalf("expected at most %d results, got %d", evidenceResultCap, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted by score at index %d", i)
		}
	}
}
