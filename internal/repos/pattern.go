package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type PatternRepo interface {
	Create(ctx context.Context, tx *gorm.DB, patterns []*types.Pattern) ([]*types.Pattern, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Pattern, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Pattern, error)
	GetByLineage(ctx context.Context, tx *gorm.DB, lineageID uuid.UUID) ([]*types.Pattern, error)
	GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Pattern, error)
	MarkSuperseded(ctx context.Context, tx *gorm.DB, id uuid.UUID, supersededByID uuid.UUID) error
}

type patternRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatternRepo(db *gorm.DB, baseLog *logger.Logger) PatternRepo {
	return &patternRepo{db: db, log: baseLog.With("repo", "PatternRepo")}
}

func (r *patternRepo) Create(ctx context.Context, tx *gorm.DB, patterns []*types.Pattern) ([]*types.Pattern, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(patterns) == 0 {
		return []*types.Pattern{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&patterns).Error; err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *patternRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Pattern, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var pattern types.Pattern
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&pattern).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pattern, nil
}

func (r *patternRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Pattern, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Pattern
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.PatternStatusActive).
		Order("last_reinforced_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *patternRepo) GetByLineage(ctx context.Context, tx *gorm.DB, lineageID uuid.UUID) ([]*types.Pattern, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Pattern
	if lineageID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("lineage_id = ?", lineageID).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetTemporalCandidates returns patterns either reinforced inside the window
// or currently ACTIVE, newest-reinforced first.
func (r *patternRepo) GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Pattern, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Pattern
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND (status = ? OR (last_reinforced_at >= ? AND last_reinforced_at < ?))",
			userID, types.PatternStatusActive, from, to).
		Order("last_reinforced_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *patternRepo) MarkSuperseded(ctx context.Context, tx *gorm.DB, id uuid.UUID, supersededByID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || supersededByID == uuid.Nil {
		return errors.New("pattern id and superseded_by id required")
	}
	return transaction.WithContext(ctx).
		Model(&types.Pattern{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           types.PatternStatusSuperseded,
			"superseded_by_id": supersededByID,
		}).Error
}
