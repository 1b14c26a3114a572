package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type ReviewRepo interface {
	Create(ctx context.Context, tx *gorm.DB, reviews []*types.Review) ([]*types.Review, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Review, error)
	GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Review, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return &reviewRepo{db: db, log: baseLog.With("repo", "ReviewRepo")}
}

func (r *reviewRepo) Create(ctx context.Context, tx *gorm.DB, reviews []*types.Review) ([]*types.Review, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reviews) == 0 {
		return []*types.Review{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Review, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Review
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("period_end DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetTemporalCandidates returns reviews whose period overlaps the window,
// most recent period first.
func (r *reviewRepo) GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Review, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Review
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND period_end >= ? AND period_start < ?", userID, from, to).
		Order("period_end DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
