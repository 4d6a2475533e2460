package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lamdp/shiptrack/internal/shell/api"
	"github.com/lamdp/shiptrack/internal/shell/drive"
	"github.com/lamdp/shiptrack/internal/shell/store"
	"github.com/lamdp/shiptrack/internal/shell/telegram"
	"github.com/lamdp/shiptrack/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDriveError      = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the shipment tracking application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	notifier   *workers.Notifier
	janitor    *workers.Janitor
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Seed default accounts and suppliers on first run
	if cfg.Seed.Enabled {
		var seedErr error
		if cfg.Seed.File != "" {
			seedErr = store.SeedFromFile(context.Background(), s, cfg.Seed.File)
		} else {
			seedErr = store.Seed(context.Background(), s)
		}
		if seedErr != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      seedErr,
				ExitCode: ExitDatabaseError,
			}
		}
	}

	// Telegram bot client, no-op when unconfigured
	var bot telegram.Client
	if cfg.Telegram.Enabled() {
		bot = telegram.NewBotClient(telegram.BotConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		logger.Info("telegram notifications enabled", "chat_id", cfg.Telegram.ChatID)
	} else {
		bot = telegram.NewNoOpClient()
		logger.Info("telegram notifications disabled")
	}

	// Google Drive photo storage, no-op when unconfigured
	var shipmentImages, transferImages drive.Uploader
	if cfg.Drive.Enabled() {
		svc, err := drive.NewService(context.Background(), cfg.Drive.CredentialsFile)
		if err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitDriveError,
			}
		}
		shipmentImages = svc.Folder(cfg.Drive.ShipmentFolderID)
		transferImages = svc.Folder(cfg.Drive.TransferFolderID)
		logger.Info("drive photo storage enabled")
	} else {
		shipmentImages = drive.NewNoOpUploader()
		transferImages = drive.NewNoOpUploader()
		logger.Info("drive photo storage disabled")
	}

	// Create HTTP handler
	handler := api.NewHandler(s, shipmentImages, transferImages, logger)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Outbox delivery worker
	notifier := workers.NewNotifier(workers.NotifierConfig{
		Store:     s,
		Client:    bot,
		Interval:  cfg.Notifier.Interval,
		BatchSize: cfg.Notifier.BatchSize,
		Logger:    logger,
	})

	// Expired session sweeper
	janitor := workers.NewJanitor(workers.JanitorConfig{
		Store:    s,
		Interval: cfg.Sessions.CleanupInterval,
		Logger:   logger,
	})

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		notifier:   notifier,
		janitor:    janitor,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start background workers
	go s.notifier.Start(ctx)
	go s.janitor.Start(ctx)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop background workers
	s.notifier.Stop()
	s.janitor.Stop()

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
