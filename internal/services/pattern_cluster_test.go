package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/redis"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

func member(embedding []float32) clusterMember {
	return clusterMember{
		interp:    &types.Interpretation{ID: uuid.New(), EventID: uuid.New()},
		embedding: embedding,
	}
}

func TestGreedyClusterGroupsSimilarMembers(t *testing.T) {
	members := []clusterMember{
		member([]float32{1, 0}),
		member([]float32{0.99, 0.14}),
		member([]float32{0.98, 0.19}),
		member([]float32{0, 1}),
		member([]float32{0.14, 0.99}),
		member([]float32{0.19, 0.98}),
	}
	clusters := greedyCluster(members, 0.75, 3)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	for i, cl := range clusters {
		if len(cl.members) != 3 {
			t.Fatalf("cluster %d: expected 3 members, got %d", i, len(cl.members))
		}
		if cl.centroid == nil {
			t.Fatalf("cluster %d: missing centroid", i)
		}
	}
}

func TestGreedyClusterDiscardsSmallClusters(t *testing.T) {
	members := []clusterMember{
		member([]float32{1, 0}),
		member([]float32{0.99, 0.14}),
		member([]float32{0, 1}),
	}
	clusters := greedyCluster(members, 0.75, 3)
	if len(clusters) != 0 {
		t.Fatalf("expected all clusters discarded below min size, got %d", len(clusters))
	}
}

func TestGreedyClusterEmptyInput(t *testing.T) {
	if got := greedyCluster(nil, 0.75, 3); len(got) != 0 {
		t.Fatalf("expected no clusters for empty input, got %d", len(got))
	}
}

func backfillFixture(t *testing.T, interps []*types.Interpretation, lookbackDays int, ai *fakeAIClient) (*patternBackfillService, *fakePatternRepo) {
	t.Helper()
	log := testLogger(t)
	patterns := &fakePatternRepo{}
	links := &fakePatternEventRepo{}
	versions := NewPatternVersionService(nil, log, patterns, links, &fakeEmbedder{vec: []float32{1, 0}})
	svc := NewPatternBackfillService(log, redis.NoopLocker{}, &fakeInterpretationRepo{interps: interps}, patterns, ai, versions, lookbackDays)
	return svc.(*patternBackfillService), patterns
}

func embeddedInterp(userID uuid.UUID, content string, embedding []float32, age time.Duration) *types.Interpretation {
	return &types.Interpretation{
		ID:        uuid.New(),
		EventID:   uuid.New(),
		UserID:    userID,
		Content:   content,
		Embedding: types.EncodeEmbedding(embedding),
		CreatedAt: time.Now().Add(-age),
	}
}

func TestBackfillUserHonorsLookbackWindow(t *testing.T) {
	userID := uuid.New()
	day := 24 * time.Hour
	var interps []*types.Interpretation
	recentVecs := [][]float32{{1, 0}, {0.99, 0.14}, {0.98, 0.19}}
	oldVecs := [][]float32{{0, 1}, {0.14, 0.99}, {0.19, 0.98}}
	for i, v := range recentVecs {
		interps = append(interps, embeddedInterp(userID, fmt.Sprintf("recent habit %d", i), v, time.Duration(i+1)*day))
	}
	for i, v := range oldVecs {
		interps = append(interps, embeddedInterp(userID, fmt.Sprintf("ancient habit %d", i), v, 400*day))
	}
	ai := &fakeAIClient{jsonOut: map[string]any{
		"action":      "create",
		"pattern_id":  "",
		"description": "keeps a recent habit",
		"reasoning":   "the listed events repeat one behavior",
	}}
	svc, _ := backfillFixture(t, interps, 180, ai)

	result, err := svc.BackfillUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("BackfillUser failed: %v", err)
	}
	if result.InterpretationsSeen != len(recentVecs) {
		t.Fatalf("expected only the %d in-window interpretations, saw %d", len(recentVecs), result.InterpretationsSeen)
	}
	if result.Clusters != 1 || result.Created != 1 {
		t.Fatalf("expected 1 cluster and 1 created pattern, got %d/%d", result.Clusters, result.Created)
	}
}

func TestDescribeClusterUsesDecisionContract(t *testing.T) {
	userID := uuid.New()
	ai := &fakeAIClient{jsonOut: map[string]any{
		"action":      "create",
		"pattern_id":  "",
		"description": "defers chores until deadlines loom",
		"reasoning":   "every member describes last-minute effort",
	}}
	svc, _ := backfillFixture(t, nil, 0, ai)
	cl := cluster{members: []clusterMember{
		{interp: &types.Interpretation{ID: uuid.New(), EventID: uuid.New(), UserID: userID, Content: "cleaned the flat minutes before guests arrived"}},
		{interp: &types.Interpretation{ID: uuid.New(), EventID: uuid.New(), UserID: userID, Content: "filed taxes on the final day"}},
		{interp: &types.Interpretation{ID: uuid.New(), EventID: uuid.New(), UserID: userID, Content: "packed for the trip at 2am"}},
	}}

	got := svc.describeCluster(context.Background(), cl)
	if got != "defers chores until deadlines loom" {
		t.Fatalf("expected the structured description, got %q", got)
	}
	if !strings.Contains(ai.lastJSONMsg, "filed taxes on the final day") {
		t.Fatalf("cluster members missing from the synthesis context")
	}
}

func TestDescribeClusterFallsBackOnFailure(t *testing.T) {
	userID := uuid.New()
	cl := cluster{members: []clusterMember{
		{interp: &types.Interpretation{ID: uuid.New(), EventID: uuid.New(), UserID: userID, Content: "first event"}},
		{interp: &types.Interpretation{ID: uuid.New(), EventID: uuid.New(), UserID: userID, Content: "second event"}},
		{interp: &types.Interpretation{ID: uuid.New(), EventID: uuid.New(), UserID: userID, Content: "third event"}},
	}}

	svc, _ := backfillFixture(t, nil, 0, &fakeAIClient{jsonErr: fmt.Errorf("model unavailable")})
	got := svc.describeCluster(context.Background(), cl)
	if !strings.Contains(got, "3 related events") || !strings.Contains(got, "first event") {
		t.Fatalf("fallback description malformed: %q", got)
	}

	reinforce := &fakeAIClient{jsonOut: map[string]any{
		"action":      "reinforce",
		"pattern_id":  uuid.New().String(),
		"description": "should not be used",
		"reasoning":   "",
	}}
	svc, _ = backfillFixture(t, nil, 0, reinforce)
	got = svc.describeCluster(context.Background(), cl)
	if !strings.Contains(got, "3 related events") {
		t.Fatalf("reinforce action must fall back for cluster synthesis, got %q", got)
	}
}

func TestBestCentroidMatchRespectsThreshold(t *testing.T) {
	userID := uuid.New()
	near := activePattern(userID, []float32{1, 0})
	far := activePattern(userID, []float32{0, 1})
	match := bestCentroidMatch([]*types.Pattern{far, near}, []float32{0.99, 0.14})
	if match == nil {
		t.Fatalf("expected a match above the reinforce threshold")
	}
	if match.ID != near.ID {
		t.Fatalf("expected the closest pattern to win")
	}
	if got := bestCentroidMatch([]*types.Pattern{far}, []float32{1, 0}); got != nil {
		t.Fatalf("expected no match below the reinforce threshold")
	}
}
