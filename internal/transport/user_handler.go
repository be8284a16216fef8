package transport

import (
	"net/http"

	"auction-house/internal/domain"
	"auction-house/internal/middleware"
	"auction-house/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterUserRequest represents the registration request payload
type RegisterUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=100"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

func newUserProfile(u *domain.User) UserProfile {
	return UserProfile{
		ID:        u.ID.String(),
		Email:     u.Email.String(),
		Username:  u.Username,
		CreatedAt: u.CreatedAt.UTC().Format(timeFormat),
	}
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/{userID}", h.GetUser)
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Username)
	if err != nil {
		respondWithServiceError(w, h.logger, "Registration failed", err)
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	w.Header().Set("Location", "/api/users/"+user.ID.String())
	middleware.RespondWithJSON(w, http.StatusCreated, newUserProfile(user))
}

// GetUser returns a single user profile
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to get user", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}
