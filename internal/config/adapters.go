package config

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

// ToAdapterConfig converts an AdapterConfig to the adapter package's
// Config, resolving relative paths against baseDir.
func (a *AdapterConfig) ToAdapterConfig(name, baseDir string) adapter.Config {
	params := make(map[string]any, len(a.Params))
	for k, v := range a.Params {
		params[k] = v
	}
	if files, ok := params["fixtures"].([]any); ok {
		resolved := make([]any, len(files))
		for i, f := range files {
			if s, ok := f.(string); ok {
				f = resolvePathRelativeTo(s, baseDir)
			}
			resolved[i] = f
		}
		params["fixtures"] = resolved
	}

	return adapter.Config{
		Name:     name,
		Type:     a.Type,
		Path:     resolvePathRelativeTo(a.Path, baseDir),
		DSN:      a.DSN,
		Host:     a.Host,
		Port:     a.Port,
		Database: a.Database,
		Username: a.User,
		Password: a.Password,
		Schema:   a.Schema,
		Options:  a.Options,
		Params:   params,
	}
}

// OpenAdapters constructs every configured adapter concurrently and returns
// them in a registry, ordered by name. A memory adapter is added when none
// is configured under that name. On failure, adapters already opened are
// closed.
func (c *Config) OpenAdapters(ctx context.Context, logger *slog.Logger) (*adapter.Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfgs := make([]adapter.Config, 0, len(c.Adapters)+1)
	for _, name := range sortedKeys(c.Adapters) {
		cfgs = append(cfgs, c.Adapters[name].ToAdapterConfig(name, c.ProjectRoot))
	}
	if _, ok := c.Adapters[DefaultAdapterName]; !ok {
		cfgs = append(cfgs, adapter.Config{Name: DefaultAdapterName, Type: "memory"})
	}

	opened := make([]adapter.Adapter, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logger.Debug("opening adapter", "name", cfg.Name, "type", cfg.Type)
			a, err := adapter.NewAdapter(cfg, logger)
			if err != nil {
				return err
			}
			opened[i] = a
			return nil
		})
	}
	err := g.Wait()

	reg := adapter.NewRegistry()
	for _, a := range opened {
		if a != nil {
			reg.Register(a)
		}
	}
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	return reg, nil
}

// AdapterNames returns configured adapter names in order.
func (c *Config) AdapterNames() []string {
	names := sortedKeys(c.Adapters)
	if _, ok := c.Adapters[DefaultAdapterName]; !ok {
		names = append(names, DefaultAdapterName)
		sort.Strings(names)
	}
	return names
}
