package duckdb

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json").
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`

	// CSV maps resource names to CSV files loaded as tables on connect.
	CSV map[string]string `mapstructure:"csv"`

	// Resources are described at connect time to build the action schema.
	Resources []string `mapstructure:"resources"`
}

// ParseParams decodes raw adapter params. Nil params give an empty struct.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if err := adapter.DecodeParams(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

// settingStatements renders SET statements in key order.
func settingStatements(settings map[string]string) ([]string, error) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stmts := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, err := adapter.QuoteIdent(k); err != nil {
			return nil, fmt.Errorf("invalid setting: %w", err)
		}
		stmts = append(stmts, fmt.Sprintf("SET %s = '%s'", k, escapeLiteral(settings[k])))
	}
	return stmts, nil
}

func escapeLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(out)
}
