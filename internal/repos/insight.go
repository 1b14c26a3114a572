package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type InsightRepo interface {
	Create(ctx context.Context, tx *gorm.DB, insights []*types.Insight) ([]*types.Insight, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Insight, error)
	GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Insight, error)
}

type insightRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInsightRepo(db *gorm.DB, baseLog *logger.Logger) InsightRepo {
	return &insightRepo{db: db, log: baseLog.With("repo", "InsightRepo")}
}

func (r *insightRepo) Create(ctx context.Context, tx *gorm.DB, insights []*types.Insight) ([]*types.Insight, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(insights) == 0 {
		return []*types.Insight{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&insights).Error; err != nil {
		return nil, err
	}
	return insights, nil
}

func (r *insightRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Insight, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Insight
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.InsightStatusActive).
		Order("last_reinforced_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *insightRepo) GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Insight, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Insight
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND (status = ? OR (last_reinforced_at >= ? AND last_reinforced_at < ?))",
			userID, types.InsightStatusActive, from, to).
		Order("last_reinforced_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
