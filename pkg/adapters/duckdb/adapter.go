package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/leapquery/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if name == "" {
		name = "duckdb"
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Cfg:           adapter.Config{Name: name, Type: "duckdb"},
			Logger:        logger,
			DefaultSchema: "main",
		},
	}
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" (the default) as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if cfg.Name == "" {
		cfg.Name = a.Cfg.Name
	}
	a.DB = db
	a.Cfg = cfg

	if err := a.configure(ctx, params); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}
	return nil
}

func (a *Adapter) configure(ctx context.Context, params *Params) error {
	for _, ext := range params.Extensions {
		if _, err := adapter.QuoteIdent(ext); err != nil {
			return fmt.Errorf("invalid extension: %w", err)
		}
		a.Logger.Debug("loading extension", slog.String("extension", ext))
		if _, err := a.DB.ExecContext(ctx, "INSTALL "+ext+"; LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	stmts, err := settingStatements(params.Settings)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting: %w", err)
		}
	}

	tables := make([]string, 0, len(params.CSV))
	for table := range params.CSV {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if err := a.LoadCSV(ctx, table, params.CSV[table]); err != nil {
			return err
		}
	}

	if len(params.Resources) > 0 {
		s, err := adapter.LoadSchema(ctx, a, params.Resources...)
		if err != nil {
			return err
		}
		a.Declared = s
	}
	return nil
}

// Describe retrieves column metadata for a table from information_schema.
func (a *Adapter) Describe(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table)
}

// LoadCSV loads data from a CSV file into a table.
// DuckDB will automatically infer the schema from the CSV file.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	quoted, err := adapter.QuoteIdent(tableName)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	//nolint:gosec // table name is validated, path is escaped
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		quoted,
		escapeLiteral(absPath),
	)
	if _, err := a.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

// Ensure Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter   = (*Adapter)(nil)
	_ adapter.Streamer  = (*Adapter)(nil)
	_ adapter.Describer = (*Adapter)(nil)
	_ adapter.Closer    = (*Adapter)(nil)
)
