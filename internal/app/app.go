package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"imagedetect/internal/config"
	"imagedetect/internal/logger"
	"imagedetect/internal/metrics"
	"imagedetect/internal/repository"
	"imagedetect/internal/repository/gormdb"
	"imagedetect/internal/routes"
	"imagedetect/internal/services/ai"
	"imagedetect/internal/services/detection"
	"imagedetect/internal/services/websocket"
)

const (
	shutdownTimeout   = 10 * time.Second
	schemaInitTimeout = 30 * time.Second
)

// ModelLoader resolves the model variants for cfg and loads one of them.
type ModelLoader func(cfg *config.Config, log *logger.Logger) (ai.Model, error)

// StoreOpener opens the detection store.
type StoreOpener func(cfg *config.Config, log *logger.Logger) (repository.DetectionRepository, error)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	registry  *prometheus.Registry
	metrics   *metrics.DetectionMetrics
	model     *ai.Handle
	repo      repository.DetectionRepository
	hub       *websocket.HubService
	detection *detection.Service
	echo      *echo.Echo
}

// Option customizes how an App acquires its model and store.
type Option func(*options)

type options struct {
	loadModel ModelLoader
	openStore StoreOpener
}

// WithModelLoader replaces the default YOLO/remote model loader.
func WithModelLoader(l ModelLoader) Option {
	return func(o *options) { o.loadModel = l }
}

// WithStoreOpener replaces the default gorm store.
func WithStoreOpener(s StoreOpener) Option {
	return func(o *options) { o.openStore = s }
}

func openGormStore(cfg *config.Config, log *logger.Logger) (repository.DetectionRepository, error) {
	return gormdb.Open(cfg, log)
}

// NewApp performs the startup sequence: metrics, model (primary then one
// fallback), store and schema. Model and store failures degrade the
// service instead of aborting startup.
func NewApp(cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{loadModel: LoadModel, openStore: openGormStore}
	for _, opt := range opts {
		opt(&o)
	}

	registry := metrics.NewRegistry()
	m, err := metrics.NewDetectionMetrics(registry)
	if err != nil {
		return nil, err
	}

	handle := ai.NewHandle(nil)
	model, err := o.loadModel(cfg, log)
	if err != nil {
		log.Error("Starting without a detection model: %v", err)
	} else {
		handle.Set(model)
	}
	m.SetModelLoaded(handle.Loaded())

	repo, err := o.openStore(cfg, log)
	if err != nil {
		log.Error("Detection store unavailable: %v", err)
		repo = repository.Unavailable(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaInitTimeout)
	defer cancel()
	if err := repo.InitializeSchema(ctx); err != nil {
		log.Error("Failed to initialize detection schema: %v", err)
	}

	hub := websocket.NewHubService(log, m)
	svc := detection.NewService(handle, repo, log,
		detection.WithMetrics(m),
		detection.WithPublisher(hub),
	)

	e := routes.SetupRoutes(routes.Deps{
		Detection: svc,
		Hub:       hub,
		Gatherer:  registry,
	}, cfg, log)

	return &App{
		config:    cfg,
		logger:    log,
		registry:  registry,
		metrics:   m,
		model:     handle,
		repo:      repo,
		hub:       hub,
		detection: svc,
		echo:      e,
	}, nil
}

// Detection exposes the pipeline for non-HTTP callers such as the CLI.
func (a *App) Detection() *detection.Service {
	return a.detection
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.echo
}

// Run serves HTTP on the configured port until ctx is cancelled or the
// server fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Image detection server listening on %s (model loaded: %v)", a.config.Addr(), a.model.Loaded())
		if err := a.echo.Start(a.config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the model and the store.
func (a *App) Close() error {
	return errors.Join(a.model.Close(), a.repo.Close())
}
