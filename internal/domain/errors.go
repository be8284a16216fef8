package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateAttachment is returned when an article is attached to an
	// auction that already has one.
	ErrDuplicateAttachment = errors.New("article already attached to auction")

	// ErrBidTooLow is returned when a bid does not strictly exceed the
	// auction's current price.
	ErrBidTooLow = errors.New("bid price too low")

	ErrInvalidAuction   = errors.New("invalid auction")
	ErrInvalidTimeRange = errors.New("start time must not be after end time")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidBid       = errors.New("invalid bid")
	ErrInvalidArticle   = errors.New("invalid article")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidUser      = errors.New("invalid user")
)

// BidTooLowError reports a rejected offer together with the price it was
// compared against. It matches ErrBidTooLow with errors.Is.
type BidTooLowError struct {
	Offered Money
	Current Money
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%v: %s does not exceed current price %s", ErrBidTooLow, e.Offered, e.Current)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }
