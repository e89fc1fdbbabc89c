package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/authsession/internal/db"
	"github.com/nkiryanov/authsession/internal/handlers"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/repository/memory"
	"github.com/nkiryanov/authsession/internal/repository/postgres"
	"github.com/nkiryanov/authsession/internal/service/auth"
	"github.com/nkiryanov/authsession/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authsession/internal/service/sweeper"
)

const (
	shutdownTimeout    = 5 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	sweeper *sweeper.Sweeper

	// Release storage resources
	close func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Initialize error reporting
	if c.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			Environment:      c.Environment,
			AttachStacktrace: true,
		})
		if err != nil {
			return nil, fmt.Errorf("error while initializing sentry: %w", err)
		}
	}

	// Initialize storage
	var storage repository.Storage
	closeStorage := func() {}

	switch c.Storage {
	case StorageMemory:
		logger.Warn("Memory storage is used, all users and sessions are lost on restart")
		storage = memory.NewStorage()
	default:
		// Connect to the database and run migrations
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		storage = postgres.NewStorage(pool)
		closeStorage = pool.Close
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		Alg:        c.JWTAlgorithm,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handlers.NewRouter(authService, logger, metrics.New(), c.CORSOrigins),
		logger:     logger,
		sweeper:    sweeper.New(c.SweepInterval, storage.Session(), logger.With("component", "sweeper")),
		close:      closeStorage,
	}, nil
}

// Run starts http server and session sweeper, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()
	defer sentry.Flush(sentryFlushTimeout)

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
