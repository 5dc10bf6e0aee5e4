// Package config loads runtime configuration from environment
// variables, with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/kholbrook1303/dejavu/internal/storage"
)

// Defaults for optional settings.
const (
	DefaultDBPath          = "dejavu.db"
	DefaultIngestBatchSize = 10000
)

// Config holds all configuration for the application.
type Config struct {
	DBPath          string // Path to the SQLite database file
	MaxQueryParams  int    // Per-statement bound-parameter budget
	IngestWorkers   int    // Concurrent insert workers; 0 means NumCPU
	IngestBatchSize int    // Pairs per InsertHashes call
}

// Load reads configuration from environment variables and returns a
// Config struct. A .env file in the working directory is loaded first
// when present; real environment variables take precedence over it.
func Load() (*Config, error) {
	// Ignore error if no .env file exists
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:          getEnv("DEJAVU_DB_PATH", DefaultDBPath),
		MaxQueryParams:  storage.DefaultMaxQueryParams,
		IngestBatchSize: DefaultIngestBatchSize,
	}

	var err error
	if cfg.MaxQueryParams, err = getEnvInt("DEJAVU_MAX_QUERY_PARAMS", storage.DefaultMaxQueryParams); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = getEnvInt("DEJAVU_INGEST_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.IngestBatchSize, err = getEnvInt("DEJAVU_INGEST_BATCH_SIZE", DefaultIngestBatchSize); err != nil {
		return nil, err
	}

	// Three parameters per inserted fingerprint row; anything lower
	// cannot express a single insert.
	if cfg.MaxQueryParams < 3 {
		return nil, fmt.Errorf("DEJAVU_MAX_QUERY_PARAMS must be at least 3, got %d", cfg.MaxQueryParams)
	}
	if cfg.IngestWorkers < 0 {
		return nil, fmt.Errorf("DEJAVU_INGEST_WORKERS must not be negative, got %d", cfg.IngestWorkers)
	}
	if cfg.IngestBatchSize < 1 {
		return nil, fmt.Errorf("DEJAVU_INGEST_BATCH_SIZE must be positive, got %d", cfg.IngestBatchSize)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}
