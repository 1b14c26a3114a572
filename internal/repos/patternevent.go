package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type PatternEventRepo interface {
	CreateLinks(ctx context.Context, tx *gorm.DB, links []*types.PatternEvent) error
	GetEventIDsByPatternID(ctx context.Context, tx *gorm.DB, patternID uuid.UUID) ([]uuid.UUID, error)
	GetByPatternIDs(ctx context.Context, tx *gorm.DB, patternIDs []uuid.UUID) ([]*types.PatternEvent, error)
}

type patternEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatternEventRepo(db *gorm.DB, baseLog *logger.Logger) PatternEventRepo {
	return &patternEventRepo{db: db, log: baseLog.With("repo", "PatternEventRepo")}
}

func (r *patternEventRepo) CreateLinks(ctx context.Context, tx *gorm.DB, links []*types.PatternEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(links) == 0 {
		return nil
	}
	// Idempotent on (pattern_id, event_id): re-linking is a no-op.
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *patternEventRepo) GetEventIDsByPatternID(ctx context.Context, tx *gorm.DB, patternID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if patternID == uuid.Nil {
		return ids, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.PatternEvent{}).
		Where("pattern_id = ?", patternID).
		Pluck("event_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *patternEventRepo) GetByPatternIDs(ctx context.Context, tx *gorm.DB, patternIDs []uuid.UUID) ([]*types.PatternEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PatternEvent
	if len(patternIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("pattern_id IN ?", patternIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
