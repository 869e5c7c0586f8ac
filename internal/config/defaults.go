package config

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// Default configuration values.
const (
	DefaultAdapterName = criteria.DefaultAdapter
	DefaultOutput      = "auto"
	DefaultLogLevel    = "info"
	DefaultConcurrency = 4
	DefaultAction      = "find"
	DefaultHistoryPath = ".leapquery/history.db"
	DefaultHistoryKeep = 500
)

// ApplyDefaults applies default values to a Config.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.DefaultAdapter == "" {
		c.DefaultAdapter = DefaultAdapterName
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	if c.History.Keep <= 0 {
		c.History.Keep = DefaultHistoryKeep
	}
	for _, a := range c.Adapters {
		ApplyAdapterDefaults(a)
	}
	for _, q := range c.Queries {
		if q != nil && q.Action == "" {
			q.Action = DefaultAction
		}
	}
}

// ApplyAdapterDefaults applies default values to an AdapterConfig based on its type.
func ApplyAdapterDefaults(a *AdapterConfig) {
	if a == nil {
		return
	}
	a.Type = strings.ToLower(a.Type)

	switch a.Type {
	case "postgres":
		if a.Port == 0 {
			a.Port = 5432
		}
		if a.Schema == "" {
			a.Schema = "public"
		}
	case "sqlite", "duckdb":
		if a.Schema == "" {
			a.Schema = "main"
		}
	}
}
