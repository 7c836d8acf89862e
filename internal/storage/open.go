package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Backend is implemented by every storage driver.
type Backend interface {
	LoadPatterns(ctx context.Context) ([]model.Pattern, error)
	SavePatterns(ctx context.Context, patterns []model.Pattern) error
	LoadStats(ctx context.Context) (model.DelegationState, error)
	SaveStats(ctx context.Context, state model.DelegationState) error
	Close() error
}

// Open returns the backend for driver ("sqlite", "json" or "memory").
func Open(driver, path string, log *zap.Logger) (Backend, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(path, log)
	case "json":
		return NewJSONFile(path, log), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
