package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

func TestReinforceCreatesNewVersion(t *testing.T) {
	log := testLogger(t)
	patterns := &fakePatternRepo{}
	links := &fakePatternEventRepo{}
	svc := NewPatternVersionService(nil, log, patterns, links, &fakeEmbedder{vec: []float32{1, 0}})

	userID := uuid.New()
	firstEventID := uuid.New()
	old := &types.Pattern{
		ID:                 uuid.New(),
		UserID:             userID,
		LineageID:          uuid.New(),
		Version:            3,
		Description:        "old wording",
		Status:             types.PatternStatusActive,
		ReinforcementCount: 3,
		FirstDetectedAt:    time.Now().Add(-90 * 24 * time.Hour),
		LastReinforcedAt:   time.Now().Add(-10 * 24 * time.Hour),
	}
	patterns.patterns = append(patterns.patterns, old)
	links.links = append(links.links, &types.PatternEvent{PatternID: old.ID, EventID: firstEventID})

	newEventID := uuid.New()
	next, err := svc.Reinforce(context.Background(), old.ID, "refined wording", []uuid.UUID{newEventID})
	if err != nil {
		t.Fatalf("Reinforce failed: %v", err)
	}

	if next.ID == old.ID {
		t.Fatalf("new version must get a new id")
	}
	if next.LineageID != old.LineageID {
		t.Fatalf("lineage id must be preserved")
	}
	if next.Version != 4 {
		t.Fatalf("expected version 4, got %d", next.Version)
	}
	if next.ReinforcementCount != 4 {
		t.Fatalf("expected reinforcement count 4, got %d", next.ReinforcementCount)
	}
	if !next.FirstDetectedAt.Equal(old.FirstDetectedAt) {
		t.Fatalf("first detection time must carry over")
	}
	if old.Status != types.PatternStatusSuperseded {
		t.Fatalf("old version must be superseded, got %s", old.Status)
	}
	if old.SupersededByID == nil || *old.SupersededByID != next.ID {
		t.Fatalf("old version must point at its successor")
	}

	nextEvents, _ := links.GetEventIDsByPatternID(context.Background(), nil, next.ID)
	if len(nextEvents) != 2 {
		t.Fatalf("expected event links to be the union (2), got %d", len(nextEvents))
	}
	found := map[uuid.UUID]bool{}
	for _, id := range nextEvents {
		found[id] = true
	}
	if !found[firstEventID] || !found[newEventID] {
		t.Fatalf("link set must contain both the inherited and the contributing event")
	}
}

func TestReinforceRejectsSupersededHead(t *testing.T) {
	log := testLogger(t)
	patterns := &fakePatternRepo{}
	svc := NewPatternVersionService(nil, log, patterns, &fakePatternEventRepo{}, &fakeEmbedder{vec: []float32{1, 0}})

	stale := &types.Pattern{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		LineageID: uuid.New(),
		Version:   1,
		Status:    types.PatternStatusSuperseded,
	}
	patterns.patterns = append(patterns.patterns, stale)

	if _, err := svc.Reinforce(context.Background(), stale.ID, "anything", nil); err == nil {
		t.Fatalf("expected error when reinforcing a superseded version")
	}
}

func TestCreateStartsNewLineage(t *testing.T) {
	log := testLogger(t)
	patterns := &fakePatternRepo{}
	links := &fakePatternEventRepo{}
	svc := NewPatternVersionService(nil, log, patterns, links, &fakeEmbedder{vec: []float32{1, 0}})

	userID := uuid.New()
	eventID := uuid.New()
	created, err := svc.Create(context.Background(), userID, "a brand new behavior", []uuid.UUID{eventID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if created.ReinforcementCount != 1 {
		t.Fatalf("expected reinforcement count 1, got %d", created.ReinforcementCount)
	}
	if created.LineageID == uuid.Nil {
		t.Fatalf("new lineage id required")
	}
	if created.Status != types.PatternStatusActive {
		t.Fatalf("new pattern must be active, got %s", created.Status)
	}
	linked, _ := links.GetEventIDsByPatternID(context.Background(), nil, created.ID)
	if len(linked) != 1 || linked[0] != eventID {
		t.Fatalf("contributing event not linked")
	}
}

func TestUnionEventIDsDedupes(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	got := unionEventIDs([]uuid.UUID{a, b}, []uuid.UUID{b, uuid.Nil, a})
	if len(got) != 2 {
		t.Fatalf("expected 2 unique ids, got %d", len(got))
	}
}
