package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/database"
	"perfume-store/internal/delivery"
	"perfume-store/internal/logger"
	"perfume-store/internal/middleware"
	"perfume-store/internal/notify"
	"perfume-store/internal/payment"
	"perfume-store/internal/repository"
	"perfume-store/internal/server"
	"perfume-store/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	migrationsStatus := flag.Bool("migrations-status", false, "print migration status and exit")
	issueToken := flag.Bool("issue-token", false, "print a signed access token and exit")
	tokenRole := flag.String("role", middleware.RoleAdmin, "role for -issue-token")
	tokenUser := flag.String("user", "", "user id for -issue-token (random when empty)")
	tokenTTL := flag.Duration("ttl", 24*time.Hour, "lifetime for -issue-token")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	if *issueToken {
		if err := printToken(cfg.JWT.Secret, *tokenUser, *tokenRole, *tokenTTL); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Initialize logger
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := run(cfg, log, *migrationsStatus); err != nil {
		log.Fatal("Perfume store API stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger, migrationsStatus bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting perfume store API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database
	dbService, err := database.New(cfg.Database, log)
	if err != nil {
		return err
	}
	db := dbService.DB()

	if migrationsStatus {
		defer dbService.Close()
		return database.GetMigrationStatus(ctx, db, cfg.Server.MigrationsDir)
	}

	log.Info("Database health check", zap.Any("health", dbService.Health()))

	if err := database.RunMigrations(ctx, db, cfg.Server.MigrationsDir, log); err != nil {
		dbService.Close()
		return err
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if redisClient != nil {
		notifier = notify.NewRedisNotifier(redisClient, log)
	}

	if cfg.Payment.WebhookSecret == "" {
		log.Warn("PAYMENT_WEBHOOK_SECRET is not set, offline payment confirmations will be rejected")
	}

	store := repository.NewStore(db)
	payments := payment.NewRegistry(payment.NewOffline(cfg.Payment))
	deliveries := delivery.NewRegistry(log, delivery.NewPickup(cfg.Delivery))

	services := server.Services{
		Catalog:    service.NewCatalogService(store, log),
		Audit:      service.NewAuditService(store),
		Promotions: service.NewPromotionService(store, notifier, log),
		Carts:      service.NewCartService(store, cfg.Loyalty, cfg.Delivery, payments, deliveries, notifier, log),
		Orders:     service.NewOrderService(store, cfg.Loyalty, payments, deliveries, notifier, log),
		Accounts:   service.NewAccountService(store, log),
		Loyalty:    service.NewLoyaltyService(store, log),
		Payments:   payments,
	}

	srv := server.NewServer(cfg, log, dbService, redisClient, services)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if redisClient != nil {
		g.Go(func() error {
			return notify.NewSubscriber(redisClient, notify.CustomerMessages(log), log).Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")
		stop()

		// The server has 30 seconds to finish the requests it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()

	if closeErr := srv.Close(); closeErr != nil {
		log.Error("Error closing server resources", zap.Error(closeErr))
	}
	log.Info("Graceful shutdown complete")

	return err
}

// connectRedis returns nil when redis is disabled or unreachable; the API then runs
// without rate limiting and logs events instead of publishing them.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("Redis disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, continuing without it", zap.String("addr", cfg.Addr()), zap.Error(err))
		client.Close()
		return nil
	}

	log.Info("Connected to redis", zap.String("addr", cfg.Addr()))
	return client
}

func printToken(secret, user, role string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	userID := uuid.New()
	if user != "" {
		parsed, err := uuid.Parse(user)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		userID = parsed
	}

	token, err := middleware.IssueToken(secret, userID, role, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}
