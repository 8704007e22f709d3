package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fieldwork/taskd/internal/auth"
	"github.com/fieldwork/taskd/internal/config"
	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/notify"
	"github.com/fieldwork/taskd/internal/progress"
	"github.com/fieldwork/taskd/internal/realtime"
	"github.com/fieldwork/taskd/internal/reports"
	"github.com/fieldwork/taskd/internal/server"
	"github.com/fieldwork/taskd/internal/storage"
	mongostore "github.com/fieldwork/taskd/internal/storage/mongo"
)

func main() {
	cfg := config.FromEnv()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB connection URI")
	flag.StringVar(&cfg.MongoDB, "mongo-db", cfg.MongoDB, "MongoDB database name")
	flag.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "Directory for uploads and generated reports")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := mongostore.Open(context.Background(), cfg.MongoURI, cfg.MongoDB, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(ctx)
	}()

	if err := seedSuperadmin(context.Background(), store, cfg, logger); err != nil {
		logger.Error("superadmin seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("token setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reports and uploads live in separate subdirectories so the upload
	// download route can never serve a generated report.
	generator, err := reports.NewGenerator(filepath.Join(cfg.UploadDir, "reports"))
	if err != nil {
		logger.Error("report dir setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	uploadDir := filepath.Join(cfg.UploadDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		logger.Error("upload dir setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)
	dispatcher := notify.NewDispatcher(store, store, hub, hub.Presence(), logger)
	engine := progress.NewEngine(store, store, dispatcher, logger)

	srv := server.New(server.Deps{
		Store:      store,
		Tokens:     tokens,
		Guard:      auth.NewGuard(tokens, store, store),
		Hub:        hub,
		Dispatcher: dispatcher,
		Progress:   engine,
		Reports:    generator,
		Logger:     logger,
		UploadDir:  uploadDir,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// seedSuperadmin creates the initial superadmin account when configured and
// not already present.
func seedSuperadmin(ctx context.Context, store *mongostore.Store, cfg config.Config, logger *slog.Logger) error {
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		return nil
	}
	_, err := store.GetUserByEmail(ctx, cfg.SeedAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	_, err = store.CreateUser(ctx, models.User{
		Name:         "Superadmin",
		Email:        cfg.SeedAdminEmail,
		PasswordHash: hash,
		Role:         models.RoleSuperadmin,
		Active:       true,
	})
	if err != nil {
		return err
	}
	logger.Info("seeded superadmin account", slog.String("email", cfg.SeedAdminEmail))
	return nil
}
