package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of an auction at a given instant. It is
// always derived from the time window and never stored.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateEnded      State = "ended"
)

// AuctionParams holds the attributes fixed at registration.
type AuctionParams struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	StartTime         time.Time
	EndTime           time.Time
	Title             string
	Description       string
	StartingPrice     Money
	IsBuyNowAvailable bool
}

// Auction is the aggregate root for a single listing and its bid history.
//
// An Auction is not safe for concurrent use. Writers on the same auction
// must be serialized by the caller.
type Auction struct {
	id                uuid.UUID
	ownerID           uuid.UUID
	title             string
	description       string
	startTime         time.Time
	endTime           time.Time
	startingPrice     Money
	isBuyNowAvailable bool

	article *Article
	bids    []Bid

	// version is the persisted revision, used for optimistic locking.
	version int
}

// RegisterAuction creates an auction with an empty bid history and no
// article. It rejects nil identifiers, a blank title, a start time after the
// end time and a non-positive starting price.
func RegisterAuction(p AuctionParams) (*Auction, error) {
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidAuction)
	}
	if p.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidAuction)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidAuction)
	}
	if p.StartTime.IsZero() || p.EndTime.IsZero() {
		return nil, fmt.Errorf("%w: start and end time are required", ErrInvalidTimeRange)
	}
	if p.StartTime.After(p.EndTime) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidTimeRange,
			p.StartTime.Format(time.RFC3339), p.EndTime.Format(time.RFC3339))
	}
	if p.StartingPrice.IsZero() || !p.StartingPrice.IsPositive() {
		return nil, fmt.Errorf("%w: starting price must be positive", ErrInvalidPrice)
	}

	return &Auction{
		id:                p.ID,
		ownerID:           p.OwnerID,
		title:             p.Title,
		description:       p.Description,
		startTime:         p.StartTime,
		endTime:           p.EndTime,
		startingPrice:     p.StartingPrice,
		isBuyNowAvailable: p.IsBuyNowAvailable,
	}, nil
}

func (a *Auction) ID() uuid.UUID           { return a.id }
func (a *Auction) OwnerID() uuid.UUID      { return a.ownerID }
func (a *Auction) Title() string           { return a.title }
func (a *Auction) Description() string     { return a.description }
func (a *Auction) StartTime() time.Time    { return a.startTime }
func (a *Auction) EndTime() time.Time      { return a.endTime }
func (a *Auction) StartingPrice() Money    { return a.startingPrice }
func (a *Auction) IsBuyNowAvailable() bool { return a.isBuyNowAvailable }
func (a *Auction) Version() int            { return a.version }

// SetVersion records the persisted revision after a successful write.
func (a *Auction) SetVersion(v int) { a.version = v }

// AddArticle attaches the item description. It succeeds only once per
// auction; later calls fail with ErrDuplicateAttachment and leave the
// original article in place.
func (a *Auction) AddArticle(article Article) error {
	if a.article != nil {
		return fmt.Errorf("%w: auction %s already has article %q", ErrDuplicateAttachment, a.id, a.article.Name)
	}
	a.article = &article
	return nil
}

// Article returns the attached article, if any.
func (a *Auction) Article() (Article, bool) {
	if a.article == nil {
		return Article{}, false
	}
	return *a.article, true
}

// Price is the current price: the latest bid's price, or the starting price
// when nothing has been bid yet.
func (a *Auction) Price() Money {
	if bid, ok := a.LatestBid(); ok {
		return bid.Price
	}
	return a.startingPrice
}

// IsRunning reports whether now lies within [StartTime, EndTime].
func (a *Auction) IsRunning(now time.Time) bool {
	return !now.Before(a.startTime) && !now.After(a.endTime)
}

// State derives the lifecycle phase at now.
func (a *Auction) State(now time.Time) State {
	switch {
	case now.Before(a.startTime):
		return StateNotStarted
	case now.After(a.endTime):
		return StateEnded
	default:
		return StateRunning
	}
}

// PlaceBid appends bid if its price strictly exceeds the current price.
// The auction is left untouched on failure.
//
// PlaceBid does not look at the clock; callers decide whether the auction is
// open via IsRunning.
func (a *Auction) PlaceBid(bid Bid) error {
	if err := a.guardBid(bid); err != nil {
		return err
	}
	a.bids = append(a.bids, bid)
	return nil
}

func (a *Auction) guardBid(bid Bid) error {
	current := a.Price()
	cmp, err := bid.Price.Compare(current)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBid, err)
	}
	if cmp <= 0 {
		return &BidTooLowError{Offered: bid.Price, Current: current}
	}
	return nil
}

func (a *Auction) CountBids() int { return len(a.bids) }

// Bids returns a copy of the bid history in placement order.
func (a *Auction) Bids() []Bid {
	out := make([]Bid, len(a.bids))
	copy(out, a.bids)
	return out
}

// LatestBid returns the winning bid so far. ok is false when no bid exists.
func (a *Auction) LatestBid() (bid Bid, ok bool) {
	if len(a.bids) == 0 {
		return Bid{}, false
	}
	return a.bids[len(a.bids)-1], true
}

// AuctionSnapshot is the flat form of an auction as loaded from storage.
type AuctionSnapshot struct {
	AuctionParams
	Article *Article
	Bids    []Bid
	Version int
}

// RestoreAuction rebuilds an auction from a snapshot. Registration, the
// article and every bid go through the same guards as live operations, so a
// corrupt history is reported instead of loaded.
func RestoreAuction(s AuctionSnapshot) (*Auction, error) {
	a, err := RegisterAuction(s.AuctionParams)
	if err != nil {
		return nil, fmt.Errorf("restore auction %s: %w", s.ID, err)
	}
	if s.Article != nil {
		if err := a.AddArticle(*s.Article); err != nil {
			return nil, fmt.Errorf("restore auction %s: %w", s.ID, err)
		}
	}
	a.bids = make([]Bid, 0, len(s.Bids))
	for i, bid := range s.Bids {
		if err := a.PlaceBid(bid); err != nil {
			return nil, fmt.Errorf("restore auction %s: bid %d: %w", s.ID, i, err)
		}
	}
	a.version = s.Version
	return a, nil
}

// Snapshot flattens the auction for storage.
func (a *Auction) Snapshot() AuctionSnapshot {
	s := AuctionSnapshot{
		AuctionParams: AuctionParams{
			ID:                a.id,
			OwnerID:           a.ownerID,
			StartTime:         a.startTime,
			EndTime:           a.endTime,
			Title:             a.title,
			Description:       a.description,
			StartingPrice:     a.startingPrice,
			IsBuyNowAvailable: a.isBuyNowAvailable,
		},
		Bids:    a.Bids(),
		Version: a.version,
	}
	if art, ok := a.Article(); ok {
		s.Article = &art
	}
	return s
}
