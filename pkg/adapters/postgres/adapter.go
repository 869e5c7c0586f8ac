// Package postgres provides a read-only PostgreSQL adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/leapquery/pkg/adapter"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// Params holds PostgreSQL-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Resources are described at connect time to build the action schema.
	Resources []string `mapstructure:"resources"`

	// ApplicationName is reported to the server (pg_stat_activity).
	ApplicationName string `mapstructure:"application_name"`
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if name == "" {
		name = "postgres"
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Cfg:           adapter.Config{Name: name, Type: "postgres"},
			Logger:        logger,
			DefaultSchema: "public",
			Placeholder:   placeholder,
		},
	}
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return err
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildPostgresDSN(cfg, params)
	}

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	return a.attach(ctx, db, cfg, params)
}

// attach adopts an open connection and loads the configured schema.
func (a *Adapter) attach(ctx context.Context, db *sql.DB, cfg adapter.Config, params Params) error {
	if cfg.Name == "" {
		cfg.Name = a.Cfg.Name
	}
	if cfg.Schema != "" {
		a.DefaultSchema = cfg.Schema
	}
	a.DB = db
	a.Cfg = cfg

	if len(params.Resources) > 0 {
		s, err := adapter.LoadSchema(ctx, a, params.Resources...)
		if err != nil {
			return err
		}
		a.Declared = s
	}
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config, params Params) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if params.ApplicationName != "" {
		dsn += fmt.Sprintf(" application_name=%s", params.ApplicationName)
	}

	return dsn
}

// Describe retrieves column metadata from information_schema.
func (a *Adapter) Describe(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table)
}

// Ensure Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter   = (*Adapter)(nil)
	_ adapter.Streamer  = (*Adapter)(nil)
	_ adapter.Describer = (*Adapter)(nil)
)
