package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

// PatternDetail is a pattern with its linked source events resolved.
type PatternDetail struct {
	Pattern *types.Pattern     `json:"pattern"`
	Events  []*types.UserEvent `json:"events"`
}

// PatternQueryService is the read surface over the versioned pattern store.
type PatternQueryService interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]*types.Pattern, error)
	GetDetail(ctx context.Context, userID uuid.UUID, patternID uuid.UUID) (*PatternDetail, error)
	GetLineage(ctx context.Context, userID uuid.UUID, lineageID uuid.UUID) ([]*types.Pattern, error)
}

type patternQueryService struct {
	log              *logger.Logger
	patternRepo      repos.PatternRepo
	patternEventRepo repos.PatternEventRepo
	eventRepo        repos.UserEventRepo
}

func NewPatternQueryService(
	log *logger.Logger,
	patternRepo repos.PatternRepo,
	patternEventRepo repos.PatternEventRepo,
	eventRepo repos.UserEventRepo,
) PatternQueryService {
	return &patternQueryService{
		log:              log.With("service", "PatternQueryService"),
		patternRepo:      patternRepo,
		patternEventRepo: patternEventRepo,
		eventRepo:        eventRepo,
	}
}

func (s *patternQueryService) ListActive(ctx context.Context, userID uuid.UUID) ([]*types.Pattern, error) {
	return s.patternRepo.GetActiveByUser(ctx, nil, userID)
}

func (s *patternQueryService) GetDetail(ctx context.Context, userID uuid.UUID, patternID uuid.UUID) (*PatternDetail, error) {
	pattern, err := s.patternRepo.GetByID(ctx, nil, patternID)
	if err != nil {
		return nil, err
	}
	if pattern == nil || pattern.UserID != userID {
		return nil, fmt.Errorf("pattern %s not found", patternID)
	}
	eventIDs, err := s.patternEventRepo.GetEventIDsByPatternID(ctx, nil, patternID)
	if err != nil {
		return nil, fmt.Errorf("load event links: %w", err)
	}
	var events []*types.UserEvent
	if len(eventIDs) > 0 {
		events, err = s.eventRepo.GetByIDs(ctx, nil, eventIDs)
		if err != nil {
			return nil, fmt.Errorf("load linked events: %w", err)
		}
	}
	return &PatternDetail{Pattern: pattern, Events: events}, nil
}

// GetLineage returns every version in the lineage, oldest first. Ownership
// is checked against the first version.
func (s *patternQueryService) GetLineage(ctx context.Context, userID uuid.UUID, lineageID uuid.UUID) ([]*types.Pattern, error) {
	versions, err := s.patternRepo.GetByLineage(ctx, nil, lineageID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 || versions[0].UserID != userID {
		return nil, fmt.Errorf("lineage %s not found", lineageID)
	}
	return versions, nil
}
