package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/domain"
	"auction-house/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrAuctionNotRunning is returned when a bid arrives outside the
	// auction's time window.
	ErrAuctionNotRunning = errors.New("auction is not running")
	ErrOwnerNotFound     = errors.New("owner not found")
	ErrBidderNotFound    = errors.New("bidder not found")
)

// Locker serializes writers on a key across processes.
type Locker interface {
	AcquireWait(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Clock returns the current time.
type Clock func() time.Time

// RegisterAuctionInput carries the attributes of a new auction.
type RegisterAuctionInput struct {
	OwnerID           uuid.UUID
	Title             string
	Description       string
	StartTime         time.Time
	EndTime           time.Time
	StartingPrice     domain.Money
	IsBuyNowAvailable bool
}

// AuctionService defines the application operations on auctions
type AuctionService interface {
	Register(ctx context.Context, in RegisterAuctionInput) (*domain.Auction, error)
	AddArticle(ctx context.Context, auctionID uuid.UUID, article domain.Article) (*domain.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, price domain.Money) (*domain.Auction, domain.Bid, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
	Now() time.Time
}

// AuctionOptions tunes write coordination.
type AuctionOptions struct {
	LockTTL    time.Duration
	BidRetries int
	Clock      Clock
}

type auctionService struct {
	auctions repository.AuctionRepository
	users    repository.UserRepository
	locker   Locker
	logger   *zap.Logger
	opts     AuctionOptions
}

// NewAuctionService creates a new instance of AuctionService
func NewAuctionService(
	auctions repository.AuctionRepository,
	users repository.UserRepository,
	locker Locker,
	logger *zap.Logger,
	opts AuctionOptions,
) AuctionService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	if opts.BidRetries < 1 {
		opts.BidRetries = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &auctionService{
		auctions: auctions,
		users:    users,
		locker:   locker,
		logger:   logger,
		opts:     opts,
	}
}

func (s *auctionService) Now() time.Time {
	return s.opts.Clock()
}

// Register validates the owner and stores a new auction
func (s *auctionService) Register(ctx context.Context, in RegisterAuctionInput) (*domain.Auction, error) {
	if _, err := s.users.FindByID(ctx, in.OwnerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to check owner: %w", err)
	}

	auction, err := domain.RegisterAuction(domain.AuctionParams{
		ID:                uuid.New(),
		OwnerID:           in.OwnerID,
		StartTime:         in.StartTime,
		EndTime:           in.EndTime,
		Title:             in.Title,
		Description:       in.Description,
		StartingPrice:     in.StartingPrice,
		IsBuyNowAvailable: in.IsBuyNowAvailable,
	})
	if err != nil {
		return nil, err
	}

	if err := s.auctions.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	s.logger.Info("Auction registered",
		zap.String("auction_id", auction.ID().String()),
		zap.String("owner_id", in.OwnerID.String()),
		zap.Stringer("starting_price", auction.StartingPrice()),
	)
	return auction, nil
}

// AddArticle attaches the article to an auction once
func (s *auctionService) AddArticle(ctx context.Context, auctionID uuid.UUID, article domain.Article) (*domain.Auction, error) {
	var out *domain.Auction
	err := s.mutate(ctx, auctionID, func(a *domain.Auction) error {
		if err := a.AddArticle(article); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Article attached",
		zap.String("auction_id", auctionID.String()),
		zap.String("article", article.Name),
	)
	return out, nil
}

// PlaceBid records a bid if the auction is open and the price beats the
// current one.
func (s *auctionService) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, price domain.Money) (*domain.Auction, domain.Bid, error) {
	if _, err := s.users.FindByID(ctx, bidderID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.Bid{}, ErrBidderNotFound
		}
		return nil, domain.Bid{}, fmt.Errorf("failed to check bidder: %w", err)
	}

	var (
		out *domain.Auction
		bid domain.Bid
	)
	err := s.mutate(ctx, auctionID, func(a *domain.Auction) error {
		now := s.opts.Clock()
		if !a.IsRunning(now) {
			return fmt.Errorf("%w: auction %s is %s", ErrAuctionNotRunning, a.ID(), a.State(now))
		}

		b, err := domain.NewBid(uuid.New(), bidderID, price, now)
		if err != nil {
			return err
		}
		if err := a.PlaceBid(b); err != nil {
			return err
		}
		out, bid = a, b
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrBidTooLow) {
			s.logger.Debug("Bid rejected",
				zap.String("auction_id", auctionID.String()),
				zap.String("bidder_id", bidderID.String()),
				zap.Stringer("price", price),
			)
		}
		return nil, domain.Bid{}, err
	}

	s.logger.Info("Bid placed",
		zap.String("auction_id", auctionID.String()),
		zap.String("bid_id", bid.ID.String()),
		zap.String("bidder_id", bidderID.String()),
		zap.Stringer("price", price),
		zap.Int("bid_count", out.CountBids()),
	)
	return out, bid, nil
}

// GetAuction loads an auction by ID
func (s *auctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	auction, err := s.auctions.FindByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

// mutate runs fn against a freshly loaded auction while holding the
// auction's lock, then saves it. A version conflict reloads and retries up to
// BidRetries times. Domain errors returned by fn are never retried.
func (s *auctionService) mutate(ctx context.Context, auctionID uuid.UUID, fn func(*domain.Auction) error) error {
	unlock, err := s.locker.AcquireWait(ctx, "auction:"+auctionID.String(), s.opts.LockTTL)
	if err != nil {
		s.logger.Warn("Failed to acquire auction lock",
			zap.String("auction_id", auctionID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to lock auction: %w", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		auction, err := s.auctions.FindByID(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("failed to load auction: %w", err)
		}

		if err := fn(auction); err != nil {
			return err
		}

		err = s.auctions.Update(ctx, auction)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConcurrencyConflict) || attempt >= s.opts.BidRetries {
			return fmt.Errorf("failed to save auction: %w", err)
		}

		s.logger.Warn("Concurrent auction update, retrying",
			zap.String("auction_id", auctionID.String()),
			zap.Int("attempt", attempt),
		)
	}
}
