package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Email is a normalized, syntactically valid email address.
type Email string

// NewEmail lowercases and validates an address.
func NewEmail(s string) (Email, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if err := validate.Var(s, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, s)
	}
	return Email(s), nil
}

func (e Email) String() string { return string(e) }

// User is a registered participant. Auctions and bids refer to users by ID
// only.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     Email     `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewUser builds a user with a fresh identifier.
func NewUser(email Email, username string, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidUser)
	}
	return &User{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
