// Package config loads leapquery project configuration: the adapters a
// project talks to and the named queries it defines.
// This package is decoupled from CLI concerns.
package config

// Config holds the full project configuration.
type Config struct {
	// DefaultAdapter names the adapter used for paths without an adapter
	// segment.
	DefaultAdapter string `koanf:"default_adapter"`

	LogLevel string `koanf:"log_level"`
	Verbose  bool   `koanf:"verbose"`
	Output   string `koanf:"output"` // auto, table, json

	// Concurrency bounds how many named queries run at once.
	Concurrency int `koanf:"concurrency"`

	Adapters map[string]*AdapterConfig `koanf:"adapters"`
	Queries  map[string]*QueryConfig   `koanf:"queries"`

	History HistoryConfig `koanf:"history"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// AdapterConfig holds the configuration of one named adapter.
type AdapterConfig struct {
	Type string `koanf:"type"` // memory, sqlite, duckdb, postgres

	// File-based stores: database file, or fixture file for memory.
	Path string `koanf:"path"`

	// DSN is a full connection string; takes precedence over the fields below.
	DSN string `koanf:"dsn"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (fixtures, pragmas, extensions)
	Params map[string]any `koanf:"params"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	// Enabled records every executed query.
	Enabled bool `koanf:"enabled"`
	// Path is the SQLite file, relative to the project root.
	Path string `koanf:"path"`
	// Keep is how many runs survive pruning.
	Keep int `koanf:"keep"`
}

// QueryConfig declares a named query.
type QueryConfig struct {
	Description string `koanf:"description"`

	// Use selects the query's default adapter.
	Use string `koanf:"use"`

	Start  string   `koanf:"start"`
	Select []string `koanf:"select"`

	Where []FilterConfig `koanf:"where"`

	// Sort lists attributes; a leading "-" sorts descending.
	Sort []string `koanf:"sort"`

	Limit  int `koanf:"limit"`
	Page   int `koanf:"page"`
	Offset int `koanf:"offset"`

	Returns string `koanf:"returns"`

	// Action is find, count or exists.
	Action string `koanf:"action"`
}

// FilterConfig is one constraint of a named query.
type FilterConfig struct {
	Attr string `koanf:"attr"`
	Op   string `koanf:"op"`

	// Value is compared against the attribute. Ref, when set, names another
	// attribute path instead.
	Value any    `koanf:"value"`
	Ref   string `koanf:"ref"`
}

// QueryNames returns configured query names in order.
func (c *Config) QueryNames() []string {
	return sortedKeys(c.Queries)
}
