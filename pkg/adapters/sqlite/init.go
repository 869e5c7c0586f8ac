package sqlite

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error) {
		a := New(cfg.Name, logger)
		if err := a.Connect(context.Background(), cfg); err != nil {
			return nil, err
		}
		return a, nil
	})
}
