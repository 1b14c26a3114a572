package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/openai"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

const insightSourceLimit = 30

const insightSystemPrompt = `You distill durable insights about a person from their interpreted life events.
An insight is a stable observation about preferences, tendencies, or circumstances, not a restatement of any single event.
Return JSON with "insight" (one sentence) and "confidence" (HIGH when several events independently support it, MEDIUM for a consistent but thin signal, LOW for a tentative read).`

var insightSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"insight": map[string]any{
			"type":        "string",
			"description": "One sentence stating the durable observation.",
		},
		"confidence": map[string]any{
			"type": "string",
			"enum": []string{types.InsightConfidenceHigh, types.InsightConfidenceMedium, types.InsightConfidenceLow},
		},
	},
	"required":             []string{"insight", "confidence"},
	"additionalProperties": false,
}

type InsightService interface {
	BuildForUser(ctx context.Context, userID uuid.UUID) (*types.Insight, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Insight, error)
}

type insightService struct {
	log         *logger.Logger
	interpRepo  repos.InterpretationRepo
	insightRepo repos.InsightRepo
	ai          openai.Client
}

func NewInsightService(log *logger.Logger, interpRepo repos.InterpretationRepo, insightRepo repos.InsightRepo, ai openai.Client) InsightService {
	return &insightService{
		log:         log.With("service", "InsightService"),
		interpRepo:  interpRepo,
		insightRepo: insightRepo,
		ai:          ai,
	}
}

func (s *insightService) BuildForUser(ctx context.Context, userID uuid.UUID) (*types.Insight, error) {
	interps, err := s.interpRepo.GetRecentByUser(ctx, nil, userID, insightSourceLimit)
	if err != nil {
		return nil, fmt.Errorf("load interpretations: %w", err)
	}
	if len(interps) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for _, interp := range interps {
		b.WriteString("- ")
		b.WriteString(interp.Content)
		b.WriteString("\n")
	}
	raw, err := s.ai.GenerateJSON(ctx, insightSystemPrompt, b.String(), "user_insight", insightSchema)
	if err != nil {
		return nil, fmt.Errorf("generate insight: %w", err)
	}
	content, _ := raw["insight"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("generate insight: empty response")
	}
	confidence, _ := raw["confidence"].(string)
	switch confidence {
	case types.InsightConfidenceHigh, types.InsightConfidenceMedium, types.InsightConfidenceLow:
	default:
		confidence = types.InsightConfidenceLow
	}

	var embedding []float32
	if vecs, err := s.ai.Embed(ctx, []string{content}); err != nil {
		s.log.Warn("insight embedding failed", "user_id", userID, "error", err)
	} else {
		embedding = vecs[0]
	}

	now := time.Now()
	insight := &types.Insight{
		UserID:           userID,
		Content:          content,
		Embedding:        types.EncodeEmbedding(embedding),
		Status:           types.InsightStatusActive,
		Confidence:       confidence,
		FirstDetectedAt:  now,
		LastReinforcedAt: now,
	}
	if _, err := s.insightRepo.Create(ctx, nil, []*types.Insight{insight}); err != nil {
		return nil, fmt.Errorf("store insight: %w", err)
	}
	return insight, nil
}

func (s *insightService) List(ctx context.Context, userID uuid.UUID) ([]*types.Insight, error) {
	return s.insightRepo.GetActiveByUser(ctx, nil, userID)
}
