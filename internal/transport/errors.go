package transport

import (
	"errors"
	"net/http"

	"auction-house/internal/cache"
	"auction-house/internal/domain"
	"auction-house/internal/middleware"
	"auction-house/internal/repository"
	"auction-house/internal/service"

	"go.uber.org/zap"
)

// statusFor maps service and domain errors onto HTTP status codes and a
// client-facing message. Unknown errors are a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, service.ErrOwnerNotFound):
		return http.StatusNotFound, "owner not found"
	case errors.Is(err, service.ErrBidderNotFound):
		return http.StatusNotFound, "bidder not found"

	case errors.Is(err, domain.ErrBidTooLow):
		return http.StatusConflict, "bid must exceed the current price"
	case errors.Is(err, domain.ErrDuplicateAttachment):
		return http.StatusConflict, "auction already has an article"
	case errors.Is(err, repository.ErrUserAlreadyExists):
		return http.StatusConflict, "user with this email already exists"
	case errors.Is(err, repository.ErrConcurrencyConflict), errors.Is(err, cache.ErrLockHeld):
		return http.StatusConflict, "auction is busy, retry the request"

	case errors.Is(err, service.ErrAuctionNotRunning):
		return http.StatusUnprocessableEntity, "auction is not running"

	case errors.Is(err, domain.ErrInvalidAuction),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidBid),
		errors.Is(err, domain.ErrInvalidArticle),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidUser):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// respondWithServiceError writes err as a structured error. Server-side
// failures are logged at error level, client mistakes at debug.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status, text := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Error(err), zap.Int("status", status))
	}
	middleware.RespondWithError(w, status, text)
}
