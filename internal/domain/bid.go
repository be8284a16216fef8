package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bid is a single offer on an auction. Bids are ordered by their position in
// the auction's history, not by PlacedAt.
type Bid struct {
	ID       uuid.UUID `json:"id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Price    Money     `json:"price"`
	PlacedAt time.Time `json:"placed_at"`
}

// NewBid validates and builds a Bid.
func NewBid(id, bidderID uuid.UUID, price Money, placedAt time.Time) (Bid, error) {
	if id == uuid.Nil {
		return Bid{}, fmt.Errorf("%w: missing id", ErrInvalidBid)
	}
	if bidderID == uuid.Nil {
		return Bid{}, fmt.Errorf("%w: missing bidder", ErrInvalidBid)
	}
	if price.IsZero() {
		return Bid{}, fmt.Errorf("%w: missing price", ErrInvalidBid)
	}
	return Bid{ID: id, BidderID: bidderID, Price: price, PlacedAt: placedAt}, nil
}

// Article describes the item being sold.
type Article struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
}

// Article conditions
const (
	ConditionNew  = "new"
	ConditionUsed = "used"
)

// NewArticle validates and builds an Article. An empty condition defaults to
// ConditionUsed.
func NewArticle(name, description, condition string) (Article, error) {
	if name == "" {
		return Article{}, fmt.Errorf("%w: name is required", ErrInvalidArticle)
	}
	switch condition {
	case "":
		condition = ConditionUsed
	case ConditionNew, ConditionUsed:
	default:
		return Article{}, fmt.Errorf("%w: unknown condition %q", ErrInvalidArticle, condition)
	}
	return Article{Name: name, Description: description, Condition: condition}, nil
}
