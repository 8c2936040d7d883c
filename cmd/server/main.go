package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/patrimonio/patrimonio-webapi/internal/api"
	"github.com/patrimonio/patrimonio-webapi/internal/config"
	"github.com/patrimonio/patrimonio-webapi/internal/handler"
	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/auth"
	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/redis"
	"github.com/patrimonio/patrimonio-webapi/internal/observability"
	"github.com/patrimonio/patrimonio-webapi/internal/repository"
	"github.com/patrimonio/patrimonio-webapi/internal/repository/cache"
	core "github.com/patrimonio/patrimonio-webapi/internal/repository/postgres"
	service "github.com/patrimonio/patrimonio-webapi/internal/services"
	"github.com/patrimonio/patrimonio-webapi/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const serviceName = "patrimonio-webapi"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Logs and traces
	logger, shutdownTracing := observability.Setup(serviceName, cfg)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	db, err := core.Open(ctx, cfg.ConnectionString)
	if err != nil {
		logger.Error("failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := core.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	// Repositories; equipment lookups go through Redis when it is configured.
	userRepo := core.NewPostgresUserRepository(db)
	var equipmentRepo repository.EquipmentRepository = core.NewPostgresEquipmentRepository(db)
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("equipment cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			equipmentRepo = cache.NewEquipmentRepository(equipmentRepo, redisClient, cfg.CacheTTL)
		}
	}

	images, err := storage.NewImages(cfg.ImagesDir, cfg.MaxImageSize)
	if err != nil {
		logger.Error("failed to prepare images root", "error", err)
		os.Exit(1)
	}

	// Services
	tokens := auth.NewTokenService(auth.DefaultOptions(), cfg.TokenTTL)
	users := service.NewUserService(userRepo, auth.NewBcryptHasher(bcrypt.DefaultCost), tokens)
	equipment := service.NewEquipmentService(equipmentRepo, images)
	if err := users.EnsureAdmin(ctx, "Administrator", cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	h := handler.NewHandler(users, equipment, cfg.MaxImageSize)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.SetupPipeline(cfg, logger, h, tokens),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped")
}
