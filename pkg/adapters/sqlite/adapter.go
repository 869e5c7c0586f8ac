// Package sqlite provides a read-only SQLite adapter.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/leapquery/pkg/adapter"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// Params holds SQLite-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Pragmas are applied after connecting (e.g., busy_timeout, journal_mode).
	Pragmas map[string]string `mapstructure:"pragmas"`

	// Resources are described at connect time to build the action schema.
	Resources []string `mapstructure:"resources"`
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if name == "" {
		name = "sqlite"
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Cfg:           adapter.Config{Name: name, Type: "sqlite"},
			Logger:        logger,
			DefaultSchema: "main",
		},
	}
}

// Connect opens the database file. Use ":memory:" (the default) for an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if err := applyPragmas(ctx, db, params.Pragmas); err != nil {
		_ = db.Close()
		return err
	}

	if cfg.Name == "" {
		cfg.Name = a.Cfg.Name
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

func applyPragmas(ctx context.Context, db *sql.DB, pragmas map[string]string) error {
	keys := make([]string, 0, len(pragmas))
	for k := range pragmas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := adapter.QuoteIdent(k); err != nil {
			return fmt.Errorf("invalid pragma: %w", err)
		}
		//nolint:gosec // pragma name is validated; value is a literal setting
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", k, pragmas[k])); err != nil {
			return fmt.Errorf("failed to apply pragma %s: %w", k, err)
		}
	}
	return nil
}

// Describe retrieves column metadata for a table via pragma_table_info.
func (a *Adapter) Describe(ctx context.Context, table string) (*adapter.Metadata, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, name := adapter.ParseQualifiedName(table, a.DefaultSchema)

	rows, err := a.DB.QueryContext(ctx, `
		SELECT cid, name, type, "notnull", pk
		FROM pragma_table_info(?, ?)
		ORDER BY cid
	`, name, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []adapter.Column
	for rows.Next() {
		var col adapter.Column
		var notNull, pk int
		if err := rows.Scan(&col.Position, &col.Name, &col.Type, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Position++
		col.Nullable = notNull == 0 && pk == 0
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	return &adapter.Metadata{
		Schema:   schema,
		Name:     name,
		Columns:  columns,
		RowCount: a.CountRows(ctx, table),
	}, nil
}

// Ensure Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter   = (*Adapter)(nil)
	_ adapter.Streamer  = (*Adapter)(nil)
	_ adapter.Describer = (*Adapter)(nil)
	_ adapter.Closer    = (*Adapter)(nil)
)
