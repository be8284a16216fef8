package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionExists     = errors.New("auction already exists")

	// ErrConcurrencyConflict means the auction changed since it was loaded.
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
