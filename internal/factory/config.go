package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
	"github.com/mcoot/smartkiosk/internal/services/detection"
	"github.com/mcoot/smartkiosk/internal/services/framegate"
	"github.com/mcoot/smartkiosk/internal/services/identity"
	pgstorage "github.com/mcoot/smartkiosk/internal/storage/postgres"
	redisstorage "github.com/mcoot/smartkiosk/internal/storage/redis"
)

// DefaultInferenceWorkers is the worker pool size when none is configured
const DefaultInferenceWorkers = 2

// Config holds configuration for the application factory
type Config struct {
	// Addr is the HTTP listen address
	Addr string
	// AllowedOrigins limits which browser origins may open kiosk WebSockets
	// If empty, any origin is accepted
	AllowedOrigins []string
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds PostgreSQL settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// CatalogSeedPath is a YAML product seed file (optional)
	// If empty, the built-in products are seeded
	CatalogSeedPath string

	Gate      framegate.Config
	Identity  identity.Config
	Detection detection.Config

	// InferenceCommand is the model worker argv. If empty, the null backend is used.
	InferenceCommand []string
	InferenceWorkers int

	// AdminKeyHash is the bcrypt hash of the admin key (optional)
	AdminKeyHash string
}

// DefaultConfig returns a memory-backed configuration with pipeline defaults
func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		StorageType:      StorageTypeMemory,
		Gate:             framegate.DefaultConfig(),
		Identity:         identity.DefaultConfig(),
		Detection:        detection.DefaultConfig(),
		InferenceWorkers: DefaultInferenceWorkers,
	}
}

// ConfigFromEnv builds a Config from environment variables
func ConfigFromEnv(logger *slog.Logger) (Config, error) {
	cfg := DefaultConfig()
	cfg.Logger = logger

	if v := os.Getenv("KIOSK_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.AllowedOrigins = splitList(os.Getenv("KIOSK_ALLOWED_ORIGINS"))
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.StorageType = v
	}

	switch cfg.StorageType {
	case StorageTypeRedis:
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return Config{}, errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	case StorageTypePostgres:
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return Config{}, errors.New("DATABASE_URL required when STORAGE_TYPE=postgres")
		}
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = dbURL
		cfg.PostgresConfig = &pgCfg
	}

	cfg.CatalogSeedPath = os.Getenv("CATALOG_SEED")
	cfg.AdminKeyHash = os.Getenv("ADMIN_KEY_HASH")

	var err error
	if cfg.Gate.DetectInterval, err = envDuration("DETECT_INTERVAL", cfg.Gate.DetectInterval); err != nil {
		return Config{}, err
	}
	if cfg.Gate.AuthInterval, err = envDuration("AUTH_INTERVAL", cfg.Gate.AuthInterval); err != nil {
		return Config{}, err
	}
	if cfg.Detection.ConfidenceFloor, err = envFloat("CONFIDENCE_FLOOR", cfg.Detection.ConfidenceFloor); err != nil {
		return Config{}, err
	}
	if cfg.Identity.Tolerance, err = envFloat("FACE_TOLERANCE", cfg.Identity.Tolerance); err != nil {
		return Config{}, err
	}

	cfg.InferenceCommand = strings.Fields(os.Getenv("INFERENCE_COMMAND"))
	if v := os.Getenv("INFERENCE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("INFERENCE_WORKERS must be a positive integer, got %q", v)
		}
		cfg.InferenceWorkers = n
	}

	return cfg, nil
}

// SeedProducts returns the products to seed the catalog with
func (c Config) SeedProducts() ([]model.Product, error) {
	if c.CatalogSeedPath == "" {
		return catalog.DefaultProducts(), nil
	}
	return catalog.LoadSeedFile(c.CatalogSeedPath)
}

// splitList parses a comma separated list, skipping empty entries
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, v)
	}
	return f, nil
}
