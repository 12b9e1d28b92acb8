package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/pet-registry/internal/api/http"
	"github.com/spec-kit/pet-registry/internal/api/http/handlers"
	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/config"
	"github.com/spec-kit/pet-registry/internal/events"
	"github.com/spec-kit/pet-registry/internal/notify"
	"github.com/spec-kit/pet-registry/internal/observability"
	"github.com/spec-kit/pet-registry/internal/persistence"
	"github.com/spec-kit/pet-registry/internal/repository"
	"github.com/spec-kit/pet-registry/internal/repository/memory"
	"github.com/spec-kit/pet-registry/internal/repository/redisstore"
	"github.com/spec-kit/pet-registry/internal/service"
	"github.com/spec-kit/pet-registry/internal/storage"
	"github.com/spec-kit/pet-registry/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger := bootstrap()
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
		if err != nil {
			logger.Fatal("failed to register metrics", zap.Error(err))
		}
	}

	dependencies := map[string]handlers.Pinger{"redis": redis}
	store := openStore(pg, logger)
	if pg.Enabled() {
		dependencies["postgres"] = pg
	}
	photos := openPhotoStore(ctx, cfg.Storage, logger)
	if photos != nil {
		dependencies["s3"] = photos
	}

	notificationWorker := worker.NewNotificationWorker(newNotifier(cfg.Notification, logger), cfg.Notification.QueueSize, logger, metrics)
	notificationWorker.Start(ctx)

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, notificationWorker, logger).RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTokenTTLMinutes)*time.Minute,
		cfg.Verification.TokenTTL())
	revocations := redisstore.NewTokenRevocationStore(redis.Client, cfg.Redis.KeyPrefix)
	passwords := auth.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength, MinScore: cfg.Auth.PasswordMinScore}

	userService := service.NewUserService(service.UserDependencies{
		Users:      store.Users(),
		Tokens:     tokens,
		Passwords:  passwords,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	verificationService := service.NewVerificationService(service.VerificationPolicyFromConfig(*cfg), service.VerificationDependencies{
		Store:      store,
		Tokens:     tokens,
		Revoker:    revocations,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	transferService := service.NewTransferService(service.TransferPolicyFromConfig(cfg.Transfer), service.TransferDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	petDeps := service.PetDependencies{
		Store:         store,
		Logger:        logger,
		MaxPhotoBytes: cfg.Storage.MaxPhotoBytes,
		PhotoURLTTL:   cfg.Storage.PhotoURLTTL(),
	}
	if photos != nil {
		petDeps.Photos = photos
	}
	petService := service.NewPetService(petDeps)

	bodyLimit := cfg.App.BodyLimitBytes
	if int64(bodyLimit) < cfg.Storage.MaxPhotoBytes {
		bodyLimit = int(cfg.Storage.MaxPhotoBytes)
	}
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Users:          handlers.NewUsersHandler(userService),
		Verification:   handlers.NewVerificationHandler(verificationService, cfg.Verification.ExposeCode),
		Pets:           handlers.NewPetsHandler(petService),
		Transfers:      handlers.NewTransfersHandler(transferService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users(), revocations, logger),
	}
	if metrics != nil {
		routes.Metrics = promhttp.Handler()
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(ctx, logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notificationWorker.Stop()
	return nil
}

func openStore(pg *persistence.Postgres, logger *zap.Logger) repository.Store {
	if pg.Enabled() {
		return repository.NewPostgresStore(pg.Pool)
	}
	logger.Warn("using the in-memory store; data is lost on restart")
	return memory.NewStore()
}

// openPhotoStore returns nil when object storage is not configured, which
// disables photo endpoints.
func openPhotoStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) *storage.S3Store {
	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			logger.Info("S3_BUCKET not set; pet photos disabled")
		} else {
			logger.Error("failed to init object storage; pet photos disabled", zap.Error(err))
		}
		return nil
	}
	return store
}

func newNotifier(cfg config.NotificationConfig, logger *zap.Logger) notify.Notifier {
	if cfg.SMTPHost == "" {
		logger.Info("SMTP_HOST not set; notifications are logged only")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPNotifier(cfg)
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
