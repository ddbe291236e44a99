// Package storage opens the store selected by STORAGE_DRIVER.
package storage

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/quicksand/config"
	"github.com/ErlanBelekov/quicksand/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/quicksand/internal/infrastructure/sqlite"
	"github.com/ErlanBelekov/quicksand/internal/repository"
)

type Store interface {
	repository.Store
	Close() error
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, sqlite.FileDSN(cfg.SQLitePath))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
