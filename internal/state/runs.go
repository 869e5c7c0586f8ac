package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapquery/internal/engine"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// ListOptions filters ListRuns.
type ListOptions struct {
	// Label keeps runs of one named query.
	Label string
	// Limit caps the number of runs (0 means 20).
	Limit int
}

const defaultListLimit = 20

// RecordRun stores a finished run and its node steps.
// Only the terminal result's count is kept, never its records.
func (s *Store) RecordRun(ctx context.Context, run *engine.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count := 0
	if run.Result != nil {
		count = run.Result.Count
	}
	var completed sql.NullInt64
	if run.CompletedAt != nil {
		completed = sql.NullInt64{Int64: run.CompletedAt.UnixNano(), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, label, action, status, started_at, completed_at, error, result_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Label, run.Action, string(run.Status),
		run.StartedAt.UnixNano(), completed, run.Error, count,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for i, nr := range run.Nodes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO node_runs (run_id, position, node_key, adapter, status, record_count, started_at, duration_ns, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, nr.Key, nr.Adapter, string(nr.Status), nr.Count,
			nr.StartedAt.UnixNano(), int64(nr.Duration), nr.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to record node %s: %w", nr.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("recorded run", "run_id", run.ID, "label", run.Label, "status", run.Status)
	return nil
}

// GetRun returns a run with its node steps.
func (s *Store) GetRun(ctx context.Context, id string) (*engine.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, action, status, started_at, completed_at, error, result_count
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT node_key, adapter, status, record_count, started_at, duration_ns, error
		 FROM node_runs WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get node runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			nr       engine.NodeRun
			status   string
			started  int64
			duration int64
		)
		if err := rows.Scan(&nr.Key, &nr.Adapter, &status, &nr.Count, &started, &duration, &nr.Error); err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}
		nr.Status = engine.NodeRunStatus(status)
		nr.StartedAt = time.Unix(0, started)
		nr.Duration = time.Duration(duration)
		run.Nodes = append(run.Nodes, &nr)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs first, without node steps.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]*engine.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, label, action, status, started_at, completed_at, error, result_count FROM runs`
	args := []any{}
	if opts.Label != "" {
		query += ` WHERE label = ?`
		args = append(args, opts.Label)
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*engine.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneRuns deletes all but the keep most recent runs and returns how
// many were removed. Node steps go with their run.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*engine.Run, error) {
	var (
		run       engine.Run
		status    string
		started   int64
		completed sql.NullInt64
		count     int
	)
	if err := row.Scan(&run.ID, &run.Label, &run.Action, &status, &started, &completed, &run.Error, &count); err != nil {
		return nil, err
	}
	run.Status = engine.RunStatus(status)
	run.StartedAt = time.Unix(0, started)
	if completed.Valid {
		t := time.Unix(0, completed.Int64)
		run.CompletedAt = &t
	}
	if run.Status == engine.RunStatusCompleted {
		run.Result = &adapter.Result{Count: count}
	}
	return &run, nil
}

var _ engine.Recorder = (*Store)(nil)
