package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"auction-house/internal/cache"
	"auction-house/internal/config"
	"auction-house/internal/database"
	custommiddleware "auction-house/internal/middleware"
	"auction-house/internal/repository"
	"auction-house/internal/service"
	"auction-house/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service, rdb *redis.Client) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", s.health)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	auctionRepo := repository.NewAuctionRepository(db.DB())

	// Initialize services
	userService := service.NewUserService(userRepo, time.Now)
	auctionService := service.NewAuctionService(
		auctionRepo,
		userRepo,
		cache.NewLockManager(rdb),
		logger,
		service.AuctionOptions{
			LockTTL:    cfg.Auction.LockTTL,
			BidRetries: cfg.Auction.BidRetries,
			Clock:      time.Now,
		},
	)

	// Register routes
	router.Group(func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(custommiddleware.RateLimitMiddleware(rdb, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "rate_limit",
			}, logger))
		}
		transport.NewUserHandler(userService, logger).RegisterRoutes(r)
		transport.NewAuctionHandler(auctionService, logger).RegisterRoutes(r)
	})

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// health reports database and Redis status. Either dependency being down
// turns the response into a 503.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok"}

	db := s.db.Health(r.Context())
	body["database"] = db
	if db["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		body["redis"] = map[string]string{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		body["redis"] = map[string]string{"status": "up"}
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	custommiddleware.RespondWithJSON(w, status, body)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
