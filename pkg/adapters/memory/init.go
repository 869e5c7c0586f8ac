package memory

import (
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

func init() {
	adapter.Register("memory", func(cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error) {
		return NewFromConfig(cfg, logger)
	})
}
