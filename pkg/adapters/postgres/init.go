// Package postgres provides a read-only PostgreSQL adapter.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapquery/pkg/adapters/postgres"
package postgres

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error) {
		a := New(cfg.Name, logger)
		if err := a.Connect(context.Background(), cfg); err != nil {
			return nil, err
		}
		return a, nil
	})
}
