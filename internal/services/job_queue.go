package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

// JobQueueService enqueues background work as job_run rows. Passing the
// caller's tx makes the enqueue atomic with the write that triggered it.
type JobQueueService interface {
	Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload any) (*types.JobRun, error)
}

type jobQueueService struct {
	log     *logger.Logger
	jobRepo repos.JobRunRepo
}

func NewJobQueueService(log *logger.Logger, jobRepo repos.JobRunRepo) JobQueueService {
	return &jobQueueService{
		log:     log.With("service", "JobQueueService"),
		jobRepo: jobRepo,
	}
}

func (s *jobQueueService) Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload any) (*types.JobRun, error) {
	var raw datatypes.JSON
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal job payload: %w", err)
		}
		raw = datatypes.JSON(b)
	}
	job := &types.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobStatusQueued,
		Payload:     raw,
	}
	if _, err := s.jobRepo.Create(ctx, tx, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}
