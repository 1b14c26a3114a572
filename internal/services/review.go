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

const (
	reviewPatternK = 8
	reviewInsightK = 6
	reviewPriorK   = 3
)

const reviewSystemPrompt = `You write a reflective period review for a personal memory system.
You are given the period's events plus the patterns, insights, and prior reviews selected as most relevant to it.
Write concise markdown with sections for what happened, which patterns showed up, and what changed since prior periods. Ground every statement in the provided material.`

// ReviewService composes period reviews from hybrid-selected memory. The
// selection is the scorer's primary consumer.
type ReviewService interface {
	GeneratePeriodReview(ctx context.Context, userID uuid.UUID, from, to time.Time) (*types.Review, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Review, error)
}

type reviewService struct {
	log        *logger.Logger
	eventRepo  repos.UserEventRepo
	reviewRepo repos.ReviewRepo
	retrieval  HybridRetrievalService
	ai         openai.Client
}

func NewReviewService(
	log *logger.Logger,
	eventRepo repos.UserEventRepo,
	reviewRepo repos.ReviewRepo,
	retrieval HybridRetrievalService,
	ai openai.Client,
) ReviewService {
	return &reviewService{
		log:        log.With("service", "ReviewService"),
		eventRepo:  eventRepo,
		reviewRepo: reviewRepo,
		retrieval:  retrieval,
		ai:         ai,
	}
}

func (s *reviewService) GeneratePeriodReview(ctx context.Context, userID uuid.UUID, from, to time.Time) (*types.Review, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("review period end must be after start")
	}

	events, err := s.eventRepo.GetInWindow(ctx, nil, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load period events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no events in period %s to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	windowEmbedding, err := s.retrieval.WindowEmbedding(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("window embedding: %w", err)
	}

	patterns, err := s.retrieval.SelectPatterns(ctx, userID, from, to, windowEmbedding, reviewPatternK)
	if err != nil {
		return nil, fmt.Errorf("select patterns: %w", err)
	}
	insights, err := s.retrieval.SelectInsights(ctx, userID, from, to, windowEmbedding, reviewInsightK)
	if err != nil {
		return nil, fmt.Errorf("select insights: %w", err)
	}
	priors, err := s.retrieval.SelectReviews(ctx, userID, from, to, windowEmbedding, reviewPriorK)
	if err != nil {
		return nil, fmt.Errorf("select prior reviews: %w", err)
	}

	content, err := s.ai.GenerateText(ctx, reviewSystemPrompt, buildReviewContext(from, to, events, patterns, insights, priors))
	if err != nil {
		return nil, fmt.Errorf("generate review: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("generate review: empty response")
	}

	var embedding []float32
	if vecs, err := s.ai.Embed(ctx, []string{content}); err != nil {
		s.log.Warn("review embedding failed", "user_id", userID, "error", err)
	} else {
		embedding = vecs[0]
	}

	review := &types.Review{
		UserID:      userID,
		PeriodStart: from,
		PeriodEnd:   to,
		Content:     content,
		Embedding:   types.EncodeEmbedding(embedding),
	}
	if _, err := s.reviewRepo.Create(ctx, nil, []*types.Review{review}); err != nil {
		return nil, fmt.Errorf("store review: %w", err)
	}
	return review, nil
}

func (s *reviewService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.reviewRepo.GetByUser(ctx, nil, userID, limit)
}

func buildReviewContext(from, to time.Time, events []*types.UserEvent, patterns, insights, priors []ScoredMemoryObject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Period\n%s to %s\n\n", from.Format("2006-01-02"), to.Format("2006-01-02"))

	b.WriteString("## Events\n")
	for _, e := range events {
		fmt.Fprintf(&b, "- %s: %s\n", e.OccurredAt.Format("2006-01-02"), e.Content)
	}

	writeObjects := func(title string, objs []ScoredMemoryObject) {
		if len(objs) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n## %s\n", title)
		for _, o := range objs {
			fmt.Fprintf(&b, "- %s\n", o.Content)
		}
	}
	writeObjects("Relevant patterns", patterns)
	writeObjects("Relevant insights", insights)
	writeObjects("Prior reviews", priors)
	return b.String()
}
