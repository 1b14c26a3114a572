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

type InterpretationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, interps []*types.Interpretation) ([]*types.Interpretation, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Interpretation, error)
	GetByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*types.Interpretation, error)
	GetByEventIDs(ctx context.Context, tx *gorm.DB, eventIDs []uuid.UUID) ([]*types.Interpretation, error)
	GetRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Interpretation, error)
	GetWithEmbeddingsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.Interpretation, error)
	GetInWindow(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Interpretation, error)
}

type interpretationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInterpretationRepo(db *gorm.DB, baseLog *logger.Logger) InterpretationRepo {
	return &interpretationRepo{db: db, log: baseLog.With("repo", "InterpretationRepo")}
}

func (r *interpretationRepo) Create(ctx context.Context, tx *gorm.DB, interps []*types.Interpretation) ([]*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(interps) == 0 {
		return []*types.Interpretation{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&interps).Error; err != nil {
		return nil, err
	}
	return interps, nil
}

func (r *interpretationRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Interpretation
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *interpretationRepo) GetByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if eventID == uuid.Nil {
		return nil, nil
	}
	var interp types.Interpretation
	err := transaction.WithContext(ctx).Where("event_id = ?", eventID).First(&interp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &interp, nil
}

func (r *interpretationRepo) GetByEventIDs(ctx context.Context, tx *gorm.DB, eventIDs []uuid.UUID) ([]*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Interpretation
	if len(eventIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("event_id IN ?", eventIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *interpretationRepo) GetRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Interpretation
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetWithEmbeddingsByUser returns embedded interpretations, newest first. A
// zero since means the full history.
func (r *interpretationRepo) GetWithEmbeddingsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Interpretation
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND embedding IS NOT NULL", userID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if err := q.Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *interpretationRepo) GetInWindow(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Interpretation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Interpretation
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
