package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type IngestEventInput struct {
	Content    string     `json:"content" binding:"required"`
	Category   string     `json:"category"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// UserEventService is the ingestion entry point. Writing the event and
// queueing its interpretation happen in one transaction so no event is ever
// stranded without downstream processing.
type UserEventService interface {
	Ingest(ctx context.Context, userID uuid.UUID, in IngestEventInput) (*types.UserEvent, *types.JobRun, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*types.UserEvent, error)
}

type userEventService struct {
	log       *logger.Logger
	db        *gorm.DB
	eventRepo repos.UserEventRepo
	jobs      JobQueueService
}

func NewUserEventService(log *logger.Logger, db *gorm.DB, eventRepo repos.UserEventRepo, jobs JobQueueService) UserEventService {
	return &userEventService{
		log:       log.With("service", "UserEventService"),
		db:        db,
		eventRepo: eventRepo,
		jobs:      jobs,
	}
}

func (s *userEventService) Ingest(ctx context.Context, userID uuid.UUID, in IngestEventInput) (*types.UserEvent, *types.JobRun, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, nil, fmt.Errorf("event content is required")
	}
	occurredAt := time.Now()
	if in.OccurredAt != nil {
		occurredAt = *in.OccurredAt
	}
	event := &types.UserEvent{
		UserID:     userID,
		Content:    content,
		Category:   strings.TrimSpace(in.Category),
		OccurredAt: occurredAt,
	}

	var job *types.JobRun
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if _, err := s.eventRepo.Create(ctx, tx, []*types.UserEvent{event}); err != nil {
			return fmt.Errorf("store event: %w", err)
		}
		entityID := event.ID
		var err error
		job, err = s.jobs.Enqueue(ctx, tx, userID, types.JobTypeInterpretationBuild, "user_event", &entityID, nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return event, job, nil
}

func (s *userEventService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*types.UserEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.eventRepo.GetByUserID(ctx, nil, userID, limit)
}

func (s *userEventService) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}
