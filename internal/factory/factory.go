package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/dependencies/random"
	"github.com/mcoot/smartkiosk/internal/inference"
	"github.com/mcoot/smartkiosk/internal/inference/matcher"
	"github.com/mcoot/smartkiosk/internal/inference/worker"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/auth"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
	"github.com/mcoot/smartkiosk/internal/services/checkout"
	"github.com/mcoot/smartkiosk/internal/services/detection"
	"github.com/mcoot/smartkiosk/internal/services/framegate"
	"github.com/mcoot/smartkiosk/internal/services/identity"
	"github.com/mcoot/smartkiosk/internal/services/notify"
	"github.com/mcoot/smartkiosk/internal/services/pipeline"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/storage"
	"github.com/mcoot/smartkiosk/internal/storage/memory"
	pgstorage "github.com/mcoot/smartkiosk/internal/storage/postgres"
	redisstorage "github.com/mcoot/smartkiosk/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Random  random.Random
	Faces   inference.FaceDetector
	Objects inference.ObjectDetector
	Metrics *metrics.Metrics

	// Services
	Registry       *session.Registry
	Bus            *notify.Bus
	Gate           *framegate.Gate
	Catalog        *catalog.Catalog
	FaceIndex      *matcher.Index
	IdentityStage  *identity.Stage
	DetectionStage *detection.Stage
	Router         *pipeline.Router
	Registrar      *identity.Registrar
	Checkout       *checkout.Coordinator
	AdminAuth      *auth.Service

	closers []io.Closer
	logger  *slog.Logger
}

// New creates a new application with all dependencies wired. Call Bootstrap
// before serving traffic and Close on shutdown.
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := pgstorage.New(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		store = pgStore
		closers = append(closers, pgStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	// Inference backend
	var (
		faces   inference.FaceDetector   = inference.Null{}
		objects inference.ObjectDetector = inference.Null{}
	)
	if len(cfg.InferenceCommand) > 0 {
		workers := cfg.InferenceWorkers
		if workers <= 0 {
			workers = DefaultInferenceWorkers
		}
		pool, err := worker.NewPool(ctx, workers, worker.CommandSpawner(cfg.InferenceCommand), logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to start inference workers: %w", err)
		}
		faces, objects = pool, pool
		closers = append(closers, pool)
	} else {
		logger.Warn("no inference command configured, using null backend")
	}

	adminAuth, err := auth.New(cfg.AdminKeyHash, logger)
	if err != nil {
		closeAll()
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app := newWithDependencies(store, clk, rnd, faces, objects, adminAuth, cfg, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	faces inference.FaceDetector,
	objects inference.ObjectDetector,
	adminAuth *auth.Service,
	cfg Config,
	logger *slog.Logger,
) *App {
	m := metrics.New()

	registry := session.NewRegistry(clk, m, logger)
	bus := notify.New(registry, clk, m, logger)
	gate := framegate.New(cfg.Gate, clk, m, logger)
	cat := catalog.New(store, logger)
	index := matcher.New()

	identityStage := identity.NewStage(cfg.Identity, faces, index, store, bus, clk, m, logger)
	detectionStage := detection.NewStage(cfg.Detection, objects, cat, bus, m, logger)
	router := pipeline.New(gate, identityStage, detectionStage, bus, clk, m, logger)

	registrar := identity.NewRegistrar(registry, store, index, bus, clk, logger)
	coordinator := checkout.New(registry, store, bus, clk, rnd, m, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Faces:          faces,
		Objects:        objects,
		Metrics:        m,
		Registry:       registry,
		Bus:            bus,
		Gate:           gate,
		Catalog:        cat,
		FaceIndex:      index,
		IdentityStage:  identityStage,
		DetectionStage: detectionStage,
		Router:         router,
		Registrar:      registrar,
		Checkout:       coordinator,
		AdminAuth:      adminAuth,
		logger:         logger,
	}
}

// Bootstrap seeds the catalog with any missing products, loads the catalog
// snapshot and loads known face embeddings into the matcher.
func (a *App) Bootstrap(ctx context.Context, seed []model.Product) error {
	if len(seed) > 0 {
		added, err := a.Catalog.Seed(ctx, seed, a.Clock.Now())
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		if added > 0 {
			a.logger.Info("catalog seeded", slog.Int("added", added))
		}
	}

	if err := a.Catalog.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	users, err := a.Storage.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load known faces: %w", err)
	}
	a.FaceIndex.Load(users)

	a.logger.Info("application bootstrapped",
		slog.Int("products", a.Catalog.Len()),
		slog.Int("known_faces", a.FaceIndex.Len()),
	)
	return nil
}

// Close tears down live sessions and releases backends
func (a *App) Close() error {
	a.Registry.CloseAll()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
