package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	for _, name := range sortedKeys(c.Adapters) {
		if err := c.Adapters[name].Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("adapter %s: %w", name, err))
		}
	}

	if !c.hasAdapter(c.DefaultAdapter) {
		result = multierror.Append(result, fmt.Errorf("default_adapter %q is not configured", c.DefaultAdapter))
	}

	switch c.Output {
	case "auto", "table", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("output %q must be one of auto, table, json", c.Output))
	}

	for _, name := range sortedKeys(c.Queries) {
		if err := c.validateQuery(c.Queries[name]); err != nil {
			result = multierror.Append(result, fmt.Errorf("query %s: %w", name, err))
		}
	}

	return result.ErrorOrNil()
}

// Validate checks if the adapter configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (a *AdapterConfig) Validate() error {
	if a == nil {
		return fmt.Errorf("adapter configuration is empty")
	}
	if a.Type == "" {
		return fmt.Errorf("adapter type is required")
	}

	// Use adapter registry as single source of truth
	if !adapter.IsRegistered(strings.ToLower(a.Type)) {
		return &adapter.UnknownAdapterError{
			Name:      a.Type,
			Available: adapter.ListAdapters(),
			Hint:      "check the adapter type in " + ConfigFileName,
		}
	}
	return nil
}

func (c *Config) validateQuery(q *QueryConfig) error {
	if q == nil {
		return fmt.Errorf("query definition is empty")
	}
	if q.Start == "" {
		return fmt.Errorf("start is required")
	}
	if q.Use != "" && !c.hasAdapter(q.Use) {
		return fmt.Errorf("use: adapter %q is not configured", q.Use)
	}

	kind, err := criteria.ParseAction(q.Action)
	if err != nil {
		return err
	}
	switch kind {
	case criteria.ActionFind, criteria.ActionCount, criteria.ActionExists:
	default:
		return fmt.Errorf("action %q cannot be declared in configuration", q.Action)
	}

	for i, f := range q.Where {
		if f.Attr == "" {
			return fmt.Errorf("where[%d]: attr is required", i)
		}
		if f.Op != "" && !criteria.Operator(f.Op).Valid() {
			return fmt.Errorf("where[%d]: unsupported operator %q", i, f.Op)
		}
	}
	if q.Limit < 0 || q.Page < 0 || q.Offset < 0 {
		return fmt.Errorf("paging values must not be negative")
	}
	return nil
}

// hasAdapter reports whether name is configured. The memory adapter is
// always available.
func (c *Config) hasAdapter(name string) bool {
	if name == DefaultAdapterName {
		return true
	}
	_, ok := c.Adapters[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
