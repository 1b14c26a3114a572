package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseDecisionCreate(t *testing.T) {
	got, err := parseDecision(map[string]any{
		"action":      "create",
		"description": "a new behavior",
		"reasoning":   "nothing comparable exists",
	})
	if err != nil {
		t.Fatalf("parseDecision failed: %v", err)
	}
	if got.Action != DecisionCreate || got.Description != "a new behavior" {
		t.Fatalf("unexpected decision: %+v", got)
	}
}

func TestParseDecisionReinforce(t *testing.T) {
	id := uuid.New()
	got, err := parseDecision(map[string]any{
		"action":      "REINFORCE",
		"pattern_id":  id.String(),
		"description": "refined wording",
	})
	if err != nil {
		t.Fatalf("parseDecision failed: %v", err)
	}
	if got.Action != DecisionReinforce || got.PatternID != id {
		t.Fatalf("unexpected decision: %+v", got)
	}
}

func TestParseDecisionRejectsBadInput(t *testing.T) {
	cases := []map[string]any{
		nil,
		{"action": "merge", "description": "x"},
		{"action": "create"},
		{"action": "reinforce", "description": "x"},
		{"action": "reinforce", "description": "x", "pattern_id": "not-a-uuid"},
	}
	for i, raw := range cases {
		if _, err := parseDecision(raw); err == nil {
			t.Fatalf("case %d: expected error for %v", i, raw)
		}
	}
}

func TestBuildOracleContextIncludesRawEventAndCandidates(t *testing.T) {
	candidate := activePattern(uuid.New(), []float32{1, 0})
	out := buildOracleContext(DecisionInput{
		EventText:          "ordered takeout instead of cooking",
		EventOccurredAt:    time.Now(),
		EventCategory:      "food",
		InterpretationText: "defaults to convenience when tired",
		Candidates:         []PatternCandidate{{Pattern: candidate, Similarity: 0.82}},
	})
	if !strings.Contains(out, "ordered takeout instead of cooking") {
		t.Fatalf("context missing raw event text")
	}
	if !strings.Contains(out, candidate.ID.String()) {
		t.Fatalf("context missing candidate id")
	}
	if !strings.Contains(out, "0.820") {
		t.Fatalf("context missing candidate similarity")
	}
}
