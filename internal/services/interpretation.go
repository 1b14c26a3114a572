package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/openai"
	"github.com/AbhiraajV/brainlm-backend/internal/clients/pinecone"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

const interpretationSystemPrompt = `You interpret a single life event for a personal memory system.
Rewrite the event as one or two sentences capturing the underlying behavior, intent, or emotional signal rather than the surface description.
Return JSON with a single "interpretation" field.`

var interpretationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"interpretation": map[string]any{
			"type":        "string",
			"description": "One or two sentences describing the behavioral meaning of the event.",
		},
	},
	"required":             []string{"interpretation"},
	"additionalProperties": false,
}

// InterpretationService turns raw events into interpretations with
// embeddings, the substrate every downstream stage reads.
type InterpretationService interface {
	BuildForEvent(ctx context.Context, eventID uuid.UUID) (*types.Interpretation, error)
}

type interpretationService struct {
	log        *logger.Logger
	eventRepo  repos.UserEventRepo
	interpRepo repos.InterpretationRepo
	ai         openai.Client
	vectors    pinecone.VectorStore
	jobs       JobQueueService
}

func NewInterpretationService(
	log *logger.Logger,
	eventRepo repos.UserEventRepo,
	interpRepo repos.InterpretationRepo,
	ai openai.Client,
	vectors pinecone.VectorStore,
	jobs JobQueueService,
) InterpretationService {
	return &interpretationService{
		log:        log.With("service", "InterpretationService"),
		eventRepo:  eventRepo,
		interpRepo: interpRepo,
		ai:         ai,
		vectors:    vectors,
		jobs:       jobs,
	}
}

// BuildForEvent is idempotent per event: a second run for the same event
// returns the stored interpretation. Interpretation and embedding failures
// degrade rather than abort, so pattern detection always gets queued.
func (s *interpretationService) BuildForEvent(ctx context.Context, eventID uuid.UUID) (*types.Interpretation, error) {
	existing, err := s.interpRepo.GetByEventID(ctx, nil, eventID)
	if err != nil {
		return nil, fmt.Errorf("check existing interpretation: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	events, err := s.eventRepo.GetByIDs(ctx, nil, []uuid.UUID{eventID})
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	event := events[0]

	content := s.interpret(ctx, event)
	var embedding []float32
	if vecs, err := s.ai.Embed(ctx, []string{content}); err != nil {
		s.log.Warn("embedding failed, storing interpretation without one", "event_id", eventID, "error", err)
	} else {
		embedding = vecs[0]
	}

	interp := &types.Interpretation{
		EventID:   event.ID,
		UserID:    event.UserID,
		Content:   content,
		Embedding: types.EncodeEmbedding(embedding),
	}
	if _, err := s.interpRepo.Create(ctx, nil, []*types.Interpretation{interp}); err != nil {
		return nil, fmt.Errorf("store interpretation: %w", err)
	}

	if embedding != nil && s.vectors != nil {
		// Mirror write. Postgres stays the source of truth.
		if err := s.vectors.Upsert(ctx, event.UserID.String(), []pinecone.Vector{{
			ID:     interp.ID.String(),
			Values: embedding,
			Metadata: map[string]any{
				"event_id": event.ID.String(),
				"user_id":  event.UserID.String(),
			},
		}}); err != nil {
			s.log.Warn("vector mirror upsert failed", "interpretation_id", interp.ID, "error", err)
		}
	}

	detectID := event.ID
	if _, err := s.jobs.Enqueue(ctx, nil, event.UserID, types.JobTypePatternDetect, "user_event", &detectID, nil); err != nil {
		return nil, fmt.Errorf("enqueue pattern detection: %w", err)
	}
	return interp, nil
}

// interpret degrades to the raw event text when generation fails or comes
// back empty.
func (s *interpretationService) interpret(ctx context.Context, event *types.UserEvent) string {
	user := event.Content
	if event.Category != "" {
		user = fmt.Sprintf("[%s] %s", event.Category, event.Content)
	}
	raw, err := s.ai.GenerateJSON(ctx, interpretationSystemPrompt, user, "event_interpretation", interpretationSchema)
	if err != nil {
		s.log.Warn("interpretation generation failed, using raw content", "event_id", event.ID, "error", err)
		return event.Content
	}
	out, _ := raw["interpretation"].(string)
	out = strings.TrimSpace(out)
	if out == "" {
		return event.Content
	}
	return out
}
