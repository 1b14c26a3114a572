package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/redis"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

func activePattern(userID uuid.UUID, embedding []float32) *types.Pattern {
	now := time.Now()
	return &types.Pattern{
		ID:                 uuid.New(),
		UserID:             userID,
		LineageID:          uuid.New(),
		Version:            1,
		Description:        "existing behavior",
		Embedding:          types.EncodeEmbedding(embedding),
		Status:             types.PatternStatusActive,
		ReinforcementCount: 1,
		FirstDetectedAt:    now,
		LastReinforcedAt:   now,
	}
}

func TestRetrieveCandidatesFloorAndCap(t *testing.T) {
	userID := uuid.New()
	trigger := []float32{1, 0}
	sims := []float64{0.95, 0.5, 0.29, 0.31, 0.8, 0.6, 0.45, 0.99}
	var actives []*types.Pattern
	for _, sim := range sims {
		// Unit vector with the wanted cosine against the trigger.
		emb := []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
		actives = append(actives, activePattern(userID, emb))
	}

	got := retrieveCandidates(actives, trigger)
	if len(got) != candidateCap {
		t.Fatalf("expected %d candidates, got %d", candidateCap, len(got))
	}
	for i, c := range got {
		if c.Similarity < candidateSimilarityFloor {
			t.Fatalf("candidate %d below floor: %f", i, c.Similarity)
		}
		if i > 0 && got[i].Similarity > got[i-1].Similarity {
			t.Fatalf("candidates not sorted descending at index %d", i)
		}
	}
}

func TestRetrieveCandidatesBoundaryInclusion(t *testing.T) {
	userID := uuid.New()
	trigger := []float32{1, 0}
	sims := []float64{0.95, 0.5, 0.29, 0.31, 0.8}
	var actives []*types.Pattern
	for _, sim := range sims {
		emb := []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
		actives = append(actives, activePattern(userID, emb))
	}

	got := retrieveCandidates(actives, trigger)
	want := []float64{0.95, 0.8, 0.5, 0.31}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i, c := range got {
		if math.Abs(c.Similarity-want[i]) > 1e-4 {
			t.Fatalf("candidate %d: expected similarity %.2f, got %f", i, want[i], c.Similarity)
		}
	}
}

func TestRetrieveCandidatesNoTriggerEmbedding(t *testing.T) {
	actives := []*types.Pattern{activePattern(uuid.New(), []float32{1, 0})}
	if got := retrieveCandidates(actives, nil); got != nil {
		t.Fatalf("expected no candidates without trigger embedding, got %d", len(got))
	}
}

type engineFixture struct {
	engine    PatternEngineService
	events    *fakeUserEventRepo
	interps   *fakeInterpretationRepo
	patterns  *fakePatternRepo
	links     *fakePatternEventRepo
	oracle    *fakeOracle
	evidence  *fakeEvidenceSelector
	eventID   uuid.UUID
	userID    uuid.UUID
}

func newEngineFixture(t *testing.T, triggerEmbedding []float32) *engineFixture {
	log := testLogger(t)
	userID := uuid.New()
	event := &types.UserEvent{
		ID:         uuid.New(),
		UserID:     userID,
		Content:    "skipped the gym again after a late night",
		Category:   "health",
		OccurredAt: time.Now(),
	}
	events := &fakeUserEventRepo{events: []*types.UserEvent{event}}
	interps := &fakeInterpretationRepo{interps: []*types.Interpretation{{
		ID:        uuid.New(),
		EventID:   event.ID,
		UserID:    userID,
		Content:   "avoids morning commitments after poor sleep",
		Embedding: types.EncodeEmbedding(triggerEmbedding),
	}}}
	patterns := &fakePatternRepo{}
	links := &fakePatternEventRepo{}
	oracle := &fakeOracle{}
	evidence := &fakeEvidenceSelector{}
	versions := NewPatternVersionService(nil, log, patterns, links, &fakeEmbedder{vec: []float32{1, 0}})
	engine := NewPatternEngineService(log, redis.NoopLocker{}, events, interps, patterns, evidence, oracle, versions)
	return &engineFixture{
		engine:   engine,
		events:   events,
		interps:  interps,
		patterns: patterns,
		links:    links,
		oracle:   oracle,
		evidence: evidence,
		eventID:  event.ID,
		userID:   userID,
	}
}

func TestProcessEventCreatesWhenNoHistory(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}
	if outcome.Kind != OutcomeCreated {
		t.Fatalf("expected CREATED outcome, got %s", outcome.Kind)
	}
	if f.oracle.called {
		t.Fatalf("oracle should not run without candidates or evidence")
	}
	if outcome.PatternID == uuid.Nil || outcome.LineageID == uuid.Nil {
		t.Fatalf("outcome missing pattern identity")
	}
}

func TestProcessEventReinforceViaOracle(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})
	existing := activePattern(f.userID, []float32{1, 0})
	f.patterns.patterns = append(f.patterns.patterns, existing)
	f.oracle.decision = &Decision{
		Action:      DecisionReinforce,
		PatternID:   existing.ID,
		Description: "avoids morning commitments after late nights",
		Reasoning:   "matches the established avoidance pattern",
	}

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}
	if outcome.Kind != OutcomeReinforced {
		t.Fatalf("expected REINFORCED outcome, got %s", outcome.Kind)
	}
	if outcome.PatternID == existing.ID {
		t.Fatalf("reinforcement must produce a new version id")
	}
	if outcome.LineageID != existing.LineageID {
		t.Fatalf("lineage must be preserved across versions")
	}
	if existing.Status != types.PatternStatusSuperseded {
		t.Fatalf("old version should be superseded, got %s", existing.Status)
	}
}

func TestProcessEventOracleFailureFallsBackToCreate(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})
	f.patterns.patterns = append(f.patterns.patterns, activePattern(f.userID, []float32{1, 0}))
	f.oracle.err = fmt.Errorf("model timeout")

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("expected fallback create, got error: %v", err)
	}
	if outcome.Kind != OutcomeCreated {
		t.Fatalf("expected CREATED fallback, got %s", outcome.Kind)
	}
	created, _ := f.patterns.GetByID(context.Background(), nil, outcome.PatternID)
	if created == nil {
		t.Fatalf("fallback pattern not stored")
	}
	if !strings.Contains(created.Description, "skipped the gym again") {
		t.Fatalf("fallback description must carry the raw event text, got %q", created.Description)
	}
}

func TestProcessEventNilDecisionFallsBackToCreate(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})
	f.patterns.patterns = append(f.patterns.patterns, activePattern(f.userID, []float32{1, 0}))
	f.oracle.decision = nil

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("expected fallback create, got error: %v", err)
	}
	if outcome.Kind != OutcomeCreated {
		t.Fatalf("expected CREATED fallback for nil decision, got %s", outcome.Kind)
	}
	if !f.oracle.called {
		t.Fatalf("oracle should have been consulted")
	}
}

func TestProcessEventRejectsReinforceOutsideCandidateSet(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})
	f.patterns.patterns = append(f.patterns.patterns, activePattern(f.userID, []float32{1, 0}))
	f.oracle.decision = &Decision{
		Action:      DecisionReinforce,
		PatternID:   uuid.New(),
		Description: "something the engine never offered",
	}

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("expected fallback create, got error: %v", err)
	}
	if outcome.Kind != OutcomeCreated {
		t.Fatalf("expected CREATED fallback for unknown pattern id, got %s", outcome.Kind)
	}
}

func TestProcessEventHighSimilarityCanStillCreate(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})
	f.patterns.patterns = append(f.patterns.patterns, activePattern(f.userID, []float32{1, 0}))
	f.oracle.decision = &Decision{
		Action:      DecisionCreate,
		Description: "a distinct new behavior despite surface similarity",
		Reasoning:   "the motivation differs from the existing pattern",
	}

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}
	if outcome.Kind != OutcomeCreated {
		t.Fatalf("oracle create decision must win over similarity, got %s", outcome.Kind)
	}
	if !f.oracle.called {
		t.Fatalf("oracle should have been consulted")
	}
	if len(f.oracle.lastIn.Candidates) == 0 {
		t.Fatalf("oracle should have received the candidate set")
	}
}

func TestProcessEventNoInterpretationCreatesEmerging(t *testing.T) {
	f := newEngineFixture(t, []float32{1, 0})
	f.interps.interps = nil

	outcome, err := f.engine.ProcessEvent(context.Background(), f.eventID)
	if err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}
	if outcome.Kind != OutcomeCreated {
		t.Fatalf("expected CREATED outcome without interpretation, got %s", outcome.Kind)
	}
	if f.oracle.called {
		t.Fatalf("oracle must not run without an interpretation")
	}
}
