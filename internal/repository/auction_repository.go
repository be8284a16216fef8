package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository persists auction aggregates. Update uses the aggregate's
// Version for optimistic concurrency control.
type AuctionRepository interface {
	Create(ctx context.Context, auction *domain.Auction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	Update(ctx context.Context, auction *domain.Auction) error
}

type auctionRepository struct {
	db *sql.DB
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(db *sql.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

// Create inserts a new auction together with any bids it already carries.
// On success the auction's version is 1.
func (r *auctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := auction.Snapshot()
	name, description, condition := articleColumns(s.Article)
	now := time.Now().UTC()

	query := `
		INSERT INTO auctions (
			id, owner_id, title, description, start_time, end_time,
			starting_price, currency, buy_now_available,
			article_name, article_description, article_condition,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $13)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		s.ID,
		s.OwnerID,
		s.Title,
		s.Description,
		s.StartTime,
		s.EndTime,
		s.StartingPrice.Amount(),
		s.StartingPrice.Currency(),
		s.IsBuyNowAvailable,
		name,
		description,
		condition,
		now,
	)
	if err != nil {
		if isUniqueViolation(err, "auctions_pkey") {
			return ErrAuctionExists
		}
		return fmt.Errorf("failed to create auction: %w", err)
	}

	if err := insertBids(ctx, tx, s.ID, 0, s.Bids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	auction.SetVersion(1)
	return nil
}

// FindByID loads an auction and its bid history in placement order.
func (r *auctionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `
		SELECT id, owner_id, title, description, start_time, end_time,
		       starting_price, currency, buy_now_available,
		       article_name, article_description, article_condition, version
		FROM auctions
		WHERE id = $1
	`

	var (
		s        domain.AuctionSnapshot
		amount   decimal.Decimal
		currency string
	)
	var artName, artDescription, artCondition sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.OwnerID,
		&s.Title,
		&s.Description,
		&s.StartTime,
		&s.EndTime,
		&amount,
		&currency,
		&s.IsBuyNowAvailable,
		&artName,
		&artDescription,
		&artCondition,
		&s.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to find auction by ID: %w", err)
	}

	s.StartingPrice, err = domain.NewMoney(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", id, err)
	}

	if artName.Valid {
		s.Article = &domain.Article{
			Name:        artName.String,
			Description: artDescription.String,
			Condition:   artCondition.String,
		}
	}

	s.Bids, err = r.findBids(ctx, id)
	if err != nil {
		return nil, err
	}

	auction, err := domain.RestoreAuction(s)
	if err != nil {
		return nil, fmt.Errorf("failed to restore auction: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) findBids(ctx context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	query := `
		SELECT id, bidder_id, amount, currency, placed_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	bids := []domain.Bid{}
	for rows.Next() {
		var (
			bid      domain.Bid
			amount   decimal.Decimal
			currency string
		)
		if err := rows.Scan(&bid.ID, &bid.BidderID, &amount, &currency, &bid.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bid.Price, err = domain.NewMoney(amount, currency)
		if err != nil {
			return nil, fmt.Errorf("bid %s: %w", bid.ID, err)
		}
		bids = append(bids, bid)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// Update writes the article and any bids appended since the auction was
// loaded. It fails with ErrConcurrencyConflict if another writer committed
// first, and bumps the auction's version on success.
func (r *auctionRepository) Update(ctx context.Context, auction *domain.Auction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := auction.Snapshot()
	name, description, condition := articleColumns(s.Article)

	query := `
		UPDATE auctions
		SET article_name = $3, article_description = $4, article_condition = $5,
		    version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2
	`

	result, err := tx.ExecContext(ctx, query, s.ID, s.Version, name, description, condition, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check auction: %w", err)
		}
		if !exists {
			return ErrAuctionNotFound
		}
		return ErrConcurrencyConflict
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bids WHERE auction_id = $1`, s.ID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count bids: %w", err)
	}
	if stored > len(s.Bids) {
		return ErrConcurrencyConflict
	}

	if err := insertBids(ctx, tx, s.ID, stored, s.Bids[stored:]); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	auction.SetVersion(s.Version + 1)
	return nil
}

func insertBids(ctx context.Context, tx *sql.Tx, auctionID uuid.UUID, firstSeq int, bids []domain.Bid) error {
	if len(bids) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bids (id, auction_id, seq, bidder_id, amount, currency, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, bid := range bids {
		_, err := stmt.ExecContext(
			ctx,
			bid.ID,
			auctionID,
			firstSeq+i,
			bid.BidderID,
			bid.Price.Amount(),
			bid.Price.Currency(),
			bid.PlacedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "bids_auction_seq_key") {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert bid %d: %w", firstSeq+i, err)
		}
	}

	return nil
}

func articleColumns(a *domain.Article) (name, description, condition sql.NullString) {
	if a == nil {
		return
	}
	return sql.NullString{String: a.Name, Valid: true},
		sql.NullString{String: a.Description, Valid: true},
		sql.NullString{String: a.Condition, Valid: true}
}
