package config

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapquery/internal/state"
)

// HistoryPath returns the run history database path resolved against
// the project root.
func (c *Config) HistoryPath() string {
	path := c.History.Path
	if path == "" {
		path = DefaultHistoryPath
	}
	return resolvePathRelativeTo(path, c.ProjectRoot)
}

// OpenHistory opens the run history store.
func (c *Config) OpenHistory(ctx context.Context, logger *slog.Logger) (*state.Store, error) {
	return state.Open(ctx, c.HistoryPath(), logger)
}
