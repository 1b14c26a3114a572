package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

// PatternVersionService applies pattern decisions as atomic, versioned
// mutations. Reinforcement is supersede-and-replace: the old row flips to
// SUPERSEDED and a fresh row (new id, count+1, new embedding) becomes the
// lineage head carrying the union of the old row's event links and the new
// contributing events. Errors from this service are store failures and must
// propagate; retrying belongs to the job layer.
type PatternVersionService interface {
	Reinforce(ctx context.Context, oldPatternID uuid.UUID, newDescription string, contributingEventIDs []uuid.UUID) (*types.Pattern, error)
	Create(ctx context.Context, userID uuid.UUID, description string, contributingEventIDs []uuid.UUID) (*types.Pattern, error)
}

type patternVersionService struct {
	db               *gorm.DB
	log              *logger.Logger
	patternRepo      repos.PatternRepo
	patternEventRepo repos.PatternEventRepo
	embedder         Embedder
}

func NewPatternVersionService(
	db *gorm.DB,
	log *logger.Logger,
	patternRepo repos.PatternRepo,
	patternEventRepo repos.PatternEventRepo,
	embedder Embedder,
) PatternVersionService {
	return &patternVersionService{
		db:               db,
		log:              log.With("service", "PatternVersionService"),
		patternRepo:      patternRepo,
		patternEventRepo: patternEventRepo,
		embedder:         embedder,
	}
}

func (s *patternVersionService) Reinforce(ctx context.Context, oldPatternID uuid.UUID, newDescription string, contributingEventIDs []uuid.UUID) (*types.Pattern, error) {
	if oldPatternID == uuid.Nil {
		return nil, fmt.Errorf("old pattern id required")
	}
	if newDescription == "" {
		return nil, fmt.Errorf("new description required")
	}

	embedding, err := s.embedDescription(ctx, newDescription)
	if err != nil {
		return nil, fmt.Errorf("failed to embed reinforced description: %w", err)
	}

	var out *types.Pattern
	err = s.transact(ctx, func(tx *gorm.DB) error {
		p, txErr := s.reinforceTx(ctx, tx, oldPatternID, newDescription, embedding, contributingEventIDs)
		if txErr != nil {
			return txErr
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Pattern reinforced",
		"lineage_id", out.LineageID,
		"old_pattern_id", oldPatternID,
		"new_pattern_id", out.ID,
		"reinforcement_count", out.ReinforcementCount,
	)
	return out, nil
}

func (s *patternVersionService) reinforceTx(ctx context.Context, tx *gorm.DB, oldPatternID uuid.UUID, newDescription string, embedding []float32, contributingEventIDs []uuid.UUID) (*types.Pattern, error) {
	old, err := s.patternRepo.GetByID(ctx, tx, oldPatternID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern %s: %w", oldPatternID, err)
	}
	if old == nil {
		return nil, fmt.Errorf("pattern %s not found", oldPatternID)
	}
	if old.Status != types.PatternStatusActive {
		return nil, fmt.Errorf("pattern %s is %s, only the active head can be reinforced", oldPatternID, old.Status)
	}

	now := time.Now()
	next := &types.Pattern{
		ID:                 uuid.New(),
		UserID:             old.UserID,
		LineageID:          old.LineageID,
		Version:            old.Version + 1,
		Description:        newDescription,
		Embedding:          types.EncodeEmbedding(embedding),
		Status:             types.PatternStatusActive,
		ReinforcementCount: old.ReinforcementCount + 1,
		FirstDetectedAt:    old.FirstDetectedAt,
		LastReinforcedAt:   now,
	}
	if _, err := s.patternRepo.Create(ctx, tx, []*types.Pattern{next}); err != nil {
		return nil, fmt.Errorf("failed to create reinforced pattern version: %w", err)
	}
	if err := s.patternRepo.MarkSuperseded(ctx, tx, old.ID, next.ID); err != nil {
		return nil, fmt.Errorf("failed to supersede pattern %s: %w", old.ID, err)
	}

	oldEventIDs, err := s.patternEventRepo.GetEventIDsByPatternID(ctx, tx, old.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event links for pattern %s: %w", old.ID, err)
	}
	union := unionEventIDs(oldEventIDs, contributingEventIDs)
	links := make([]*types.PatternEvent, 0, len(union))
	for _, eventID := range union {
		links = append(links, &types.PatternEvent{PatternID: next.ID, EventID: eventID})
	}
	if err := s.patternEventRepo.CreateLinks(ctx, tx, links); err != nil {
		return nil, fmt.Errorf("failed to link events to pattern %s: %w", next.ID, err)
	}
	return next, nil
}

func (s *patternVersionService) Create(ctx context.Context, userID uuid.UUID, description string, contributingEventIDs []uuid.UUID) (*types.Pattern, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	if description == "" {
		return nil, fmt.Errorf("description required")
	}

	embedding, err := s.embedDescription(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("failed to embed pattern description: %w", err)
	}

	var out *types.Pattern
	err = s.transact(ctx, func(tx *gorm.DB) error {
		p, txErr := s.createTx(ctx, tx, userID, description, embedding, contributingEventIDs)
		if txErr != nil {
			return txErr
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Pattern created", "pattern_id", out.ID, "lineage_id", out.LineageID, "user_id", userID)
	return out, nil
}

func (s *patternVersionService) createTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, description string, embedding []float32, contributingEventIDs []uuid.UUID) (*types.Pattern, error) {
	now := time.Now()
	pattern := &types.Pattern{
		ID:                 uuid.New(),
		UserID:             userID,
		LineageID:          uuid.New(),
		Version:            1,
		Description:        description,
		Embedding:          types.EncodeEmbedding(embedding),
		Status:             types.PatternStatusActive,
		ReinforcementCount: 1,
		FirstDetectedAt:    now,
		LastReinforcedAt:   now,
	}
	if _, err := s.patternRepo.Create(ctx, tx, []*types.Pattern{pattern}); err != nil {
		return nil, fmt.Errorf("failed to create pattern: %w", err)
	}
	links := make([]*types.PatternEvent, 0, len(contributingEventIDs))
	for _, eventID := range unionEventIDs(nil, contributingEventIDs) {
		links = append(links, &types.PatternEvent{PatternID: pattern.ID, EventID: eventID})
	}
	if err := s.patternEventRepo.CreateLinks(ctx, tx, links); err != nil {
		return nil, fmt.Errorf("failed to link events to pattern %s: %w", pattern.ID, err)
	}
	return pattern, nil
}

func (s *patternVersionService) embedDescription(ctx context.Context, description string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{description})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	return vecs[0], nil
}

// transact runs fn inside a single transaction; a nil db (tests with fake
// repos) runs the body directly.
func (s *patternVersionService) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func unionEventIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, set := range [][]uuid.UUID{a, b} {
		for _, id := range set {
			if id == uuid.Nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
