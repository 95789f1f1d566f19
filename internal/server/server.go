package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/database"
	custommiddleware "perfume-store/internal/middleware"
	"perfume-store/internal/payment"
	"perfume-store/internal/service"
	"perfume-store/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services bundles everything the HTTP handlers depend on.
type Services struct {
	Catalog    service.CatalogService
	Audit      service.AuditService
	Promotions service.PromotionService
	Carts      service.CartService
	Orders     service.OrderService
	Accounts   service.AccountService
	Loyalty    service.LoyaltyService
	Payments   *payment.Registry
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer builds the HTTP server. redisClient may be nil, which disables rate limiting.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client, services Services) *Server {
	router := NewRouter(cfg, logger, db, redisClient, services)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// NewRouter assembles the middleware stack and every route of the API.
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client, services Services) chi.Router {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack(30 * time.Second) {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", healthHandler(db, redisClient))

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	router.Route("/api/v1", func(r chi.Router) {
		if redisClient != nil && cfg.RateLimit.Requests > 0 {
			r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
				KeyPrefix:         "rate_limit",
			}, logger))
		}

		transport.NewCatalogHandler(services.Catalog, services.Audit, logger).RegisterRoutes(r, authMiddleware, adminMiddleware)
		transport.NewPromotionHandler(services.Promotions, logger).RegisterRoutes(r, authMiddleware, adminMiddleware)
		transport.NewCartHandler(services.Carts, logger).RegisterRoutes(r, authMiddleware)
		transport.NewOrderHandler(services.Orders, services.Payments, logger).RegisterRoutes(r, authMiddleware, adminMiddleware)
		transport.NewAccountHandler(services.Accounts, services.Loyalty, logger).RegisterRoutes(r, authMiddleware, adminMiddleware)
	})

	return router
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{"status": "ok"}

		if db != nil {
			dbHealth := db.Health()
			body["database"] = dbHealth
			if dbHealth["status"] != "up" {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				body["redis"] = "down"
				body["status"] = "degraded"
			} else {
				body["redis"] = "up"
			}
		}

		custommiddleware.RespondWithJSON(w, status, body)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
