package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Progenics2025/LIMS-sub003/internal/config"
	"github.com/Progenics2025/LIMS-sub003/internal/database"
	"github.com/Progenics2025/LIMS-sub003/internal/handler"
	"github.com/Progenics2025/LIMS-sub003/internal/logger"
	"github.com/Progenics2025/LIMS-sub003/internal/repository"
	"github.com/Progenics2025/LIMS-sub003/internal/router"
	"github.com/Progenics2025/LIMS-sub003/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	var (
		store   service.RecycleStore
		health  router.HealthCheck
		cleanup []func()
	)

	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set; recycle entries are kept in memory")
		store = repository.NewMemoryRecycleRepository()
	} else {
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		store = repository.NewRecycleRepository(db.Pool)
		health = db.Health
		cleanup = append(cleanup, db.Close)
		slog.Info("database ready")
	}

	recycleService := service.NewRecycleService(store)
	recycleHandler := handler.NewRecycleHandler(recycleService)

	appRouter := router.New(cfg, router.Handlers{
		Recycle: recycleHandler,
	}, health, slog.Default())

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cleanupFuncs: cleanup,
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
}
