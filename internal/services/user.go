package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type UserService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.User, error)
}

type userService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(log *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
	}
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return user, nil
}
