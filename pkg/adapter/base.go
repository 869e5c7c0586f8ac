package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/operator"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Name, Close, Execute and Stream implementations.
//
// Reads are a full scan of the resource's table; constraints, sorting and
// paging are then applied in process with the shared record filter.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	// DefaultSchema is used for unqualified table names in metadata queries.
	DefaultSchema string

	// Placeholder formats the nth bind parameter ("?" or "$1").
	Placeholder func(n int) string

	// Operators overrides the operator set used when filtering.
	Operators operator.Resolver

	// Declared is the action schema, usually loaded from table metadata.
	Declared *Schema
}

// Name returns the registry name of the adapter.
func (b *BaseSQLAdapter) Name() string {
	return b.Cfg.Name
}

// Schema returns the declared action schema, or nil.
func (b *BaseSQLAdapter) Schema() *Schema {
	return b.Declared
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Execute runs a read plan against the resource's table.
func (b *BaseSQLAdapter) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	if plan.Action.Writes() {
		return nil, fmt.Errorf("%s: %w", plan.Action, ErrUnsupportedAction)
	}
	records, err := b.ScanTable(ctx, plan.Resource.Resource)
	if err != nil {
		return nil, err
	}
	return ApplyPlan(records, plan, b.Operators)
}

// Stream executes the plan and emits each resulting record in order.
func (b *BaseSQLAdapter) Stream(ctx context.Context, plan *Plan, emit func(criteria.Record) error) error {
	res, err := b.Execute(ctx, plan)
	if err != nil {
		return err
	}
	for _, rec := range res.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// ScanTable reads every row of table into records keyed by column name.
func (b *BaseSQLAdapter) ScanTable(ctx context.Context, table string) ([]criteria.Record, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	quoted, err := QuoteIdent(table)
	if err != nil {
		return nil, err
	}

	b.logger().Debug("scanning table", slog.String("table", table))

	//nolint:gosec // identifier is validated by QuoteIdent
	rows, err := b.DB.QueryContext(ctx, "SELECT * FROM "+quoted)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var records []criteria.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		rec := make(criteria.Record, len(cols))
		for i, col := range cols {
			if raw, ok := values[i].([]byte); ok {
				rec[col] = string(raw)
				continue
			}
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", table, err)
	}
	return records, nil
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses defaultSchema if not specified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// QuoteIdent validates and double-quotes a possibly schema-qualified name.
func QuoteIdent(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	for i, p := range parts {
		if !identRe.MatchString(p) {
			return "", fmt.Errorf("invalid identifier %q", name)
		}
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, "."), nil
}

// GetTableMetadataCommon provides a shared implementation of Describe.
// Uses information_schema.columns with the adapter's placeholders.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string) (*Metadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema, tableName := ParseQualifiedName(table, b.DefaultSchema)
	ph := b.Placeholder
	if ph == nil {
		ph = func(int) string { return "?" }
	}

	//nolint:gosec // placeholders are "?" or "$N"
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, ph(1), ph(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	return &Metadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: b.CountRows(ctx, table),
	}, nil
}

// CountRows returns the row count of table. Failures report zero.
func (b *BaseSQLAdapter) CountRows(ctx context.Context, table string) int64 {
	quoted, err := QuoteIdent(table)
	if err != nil {
		return 0
	}
	var n int64
	//nolint:gosec // identifier is validated by QuoteIdent
	if err := b.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&n); err != nil {
		return 0
	}
	return n
}

// LoadSchema describes each resource and declares its read actions.
func LoadSchema(ctx context.Context, d Describer, resources ...string) (*Schema, error) {
	s := NewSchema()
	for _, res := range resources {
		md, err := d.Describe(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", res, err)
		}
		SchemaFromMetadata(s, res, md)
	}
	return s, nil
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}
