package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/librarease/assetgroups/internal/config"
	"github.com/librarease/assetgroups/internal/database"
	"github.com/librarease/assetgroups/internal/memstore"
	"github.com/librarease/assetgroups/internal/telemetry"
	"github.com/librarease/assetgroups/internal/usecase"
)

// Service is the set of manager operations the handlers call.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are storage specific.
	Health() map[string]string

	// Close releases the storage.
	Close() error

	ListAssets(context.Context) ([]usecase.Asset, error)
	GetAssetByID(context.Context, uint) (usecase.Asset, error)
	GetAssetWithGroups(context.Context, uint) (usecase.Asset, error)
	CreateAsset(context.Context, usecase.Asset) (usecase.Asset, error)
	UpdateAsset(ctx context.Context, asset usecase.Asset, expectedVersion int) (usecase.Asset, error)
	DeleteAsset(context.Context, uint) error

	ListGroups(context.Context) ([]usecase.Group, error)
	GetGroupByID(context.Context, uint) (usecase.Group, error)
	CreateGroup(context.Context, usecase.Group) (usecase.Group, error)
	DeleteGroup(context.Context, uint) error
	ListGroupAssets(context.Context, uint) ([]usecase.Asset, error)
	AddAssetToGroup(ctx context.Context, groupID, assetID uint) error
	RemoveAssetFromGroup(ctx context.Context, groupID, assetID uint) error
}

type Server struct {
	cfg config.Config

	server    Service
	validator *validator.Validate
	logger    *slog.Logger
}

func NewServer(cfg config.Config, sv Service, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		server:    sv,
		validator: validator.New(),
		logger:    logger,
	}
}

// App is the API process: the HTTP server plus everything it has to release
// on shutdown.
type App struct {
	srv    *http.Server
	svc    Service
	logger *slog.Logger

	shutdownTelemetry func(context.Context) error
}

// NewApp wires telemetry, storage, managers and routes from cfg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	repo, err := newRepository(cfg, logger)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, err
	}
	sv := usecase.New(repo, logger)

	s := NewServer(cfg, sv, logger)

	// Declare Server config
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return &App{
		srv:               srv,
		svc:               sv,
		logger:            logger,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

func newRepository(cfg config.Config, logger *slog.Logger) (usecase.Repository, error) {
	switch cfg.DBDriver {
	case config.DB_DRIVER_MEMORY:
		logger.Warn("using in-memory storage, data is lost on exit")
		return memstore.New(), nil
	default:
		repo, err := database.New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		return repo, nil
	}
}

func (a *App) Addr() string {
	return a.srv.Addr
}

// ListenAndServe blocks until the server stops. A server stopped by Shutdown
// returns nil.
func (a *App) ListenAndServe() error {
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the storage and flushes
// telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(
		a.srv.Shutdown(ctx),
		a.svc.Close(),
		a.shutdownTelemetry(ctx),
	)
}
