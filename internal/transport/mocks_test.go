package transport

import (
	"context"
	"sync"
	"time"

	"auction-house/internal/domain"
	"auction-house/internal/repository"
	"auction-house/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mock repositories for testing
type mockUserRepository struct {
	mu    sync.Mutex
	users map[domain.Email]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[domain.Email]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockAuctionRepository struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]domain.AuctionSnapshot
}

func newMockAuctionRepository() *mockAuctionRepository {
	return &mockAuctionRepository{snapshots: make(map[uuid.UUID]domain.AuctionSnapshot)}
}

func (m *mockAuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.SetVersion(1)
	m.snapshots[a.ID()] = a.Snapshot()
	return nil
}

func (m *mockAuctionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	if !ok {
		return nil, repository.ErrAuctionNotFound
	}
	return domain.RestoreAuction(s)
}

func (m *mockAuctionRepository) Update(ctx context.Context, a *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[a.ID()]
	if !ok {
		return repository.ErrAuctionNotFound
	}
	if s.Version != a.Version() {
		return repository.ErrConcurrencyConflict
	}
	a.SetVersion(a.Version() + 1)
	m.snapshots[a.ID()] = a.Snapshot()
	return nil
}

type mutexLocker struct{ mu sync.Mutex }

func (l *mutexLocker) AcquireWait(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

// testAPI is a router wired to real services over in-memory repositories.
type testAPI struct {
	router   chi.Router
	users    service.UserService
	auctions service.AuctionService
	now      time.Time
}

func newTestAPI() *testAPI {
	api := &testAPI{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return api.now }

	userRepo := newMockUserRepository()
	api.users = service.NewUserService(userRepo, clock)
	api.auctions = service.NewAuctionService(newMockAuctionRepository(), userRepo, &mutexLocker{}, zap.NewNop(), service.AuctionOptions{
		LockTTL:    time.Second,
		BidRetries: 3,
		Clock:      clock,
	})

	r := chi.NewRouter()
	NewUserHandler(api.users, zap.NewNop()).RegisterRoutes(r)
	NewAuctionHandler(api.auctions, zap.NewNop()).RegisterRoutes(r)
	api.router = r
	return api
}
