package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/domain"
	"auction-house/internal/repository"

	"github.com/google/uuid"
)

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, email, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	clock    Clock
}

// NewUserService creates a new instance of UserService
func NewUserService(userRepo repository.UserRepository, clock Clock) UserService {
	if clock == nil {
		clock = time.Now
	}
	return &userService{
		userRepo: userRepo,
		clock:    clock,
	}
}

// Register creates a new user account
func (s *userService) Register(ctx context.Context, email, username string) (*domain.User, error) {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return nil, err
	}

	// Check if user already exists
	existingUser, err := s.userRepo.FindByEmail(ctx, addr)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	user, err := domain.NewUser(addr, username, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
