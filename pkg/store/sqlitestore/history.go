package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hazyhaar/taxomigrate/pkg/migration"
)

// Run is one row of the migration_runs table.
type Run struct {
	ID          string
	Mode        string
	Target      string
	StartedAt   int64
	FinishedAt  int64
	Inspected   int
	Changed     int
	Unmapped    int
	Failed      int
	Interrupted bool
}

// RunLog appends migration summaries to the migration_runs table.
type RunLog struct {
	db *sql.DB
}

// OpenRunLog opens (or creates) the history database at path.
func OpenRunLog(path string) (*RunLog, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS migration_runs (
		run_id      TEXT PRIMARY KEY,
		mode        TEXT NOT NULL,
		target      TEXT NOT NULL DEFAULT '',
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		inspected   INTEGER NOT NULL,
		changed     INTEGER NOT NULL,
		unmapped    INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create migration_runs table: %w", err)
	}
	return &RunLog{db: db}, nil
}

// Close closes the SQLite connection.
func (l *RunLog) Close() error {
	return l.db.Close()
}

// Record stores the summary of a finished report and returns the new run id.
func (l *RunLog) Record(ctx context.Context, target string, r *migration.Report) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx, `INSERT INTO migration_runs
		(run_id, mode, target, started_at, finished_at, inspected, changed, unmapped, failed, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(r.Mode), target, r.StartedAt.Unix(), r.FinishedAt.Unix(),
		r.Inspected, r.Changed, r.Unmapped, r.Failed, r.Interrupted)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// List returns the most recent runs first. limit <= 0 returns every run.
func (l *RunLog) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `SELECT run_id, mode, target, started_at, finished_at,
		inspected, changed, unmapped, failed, interrupted
		FROM migration_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Mode, &r.Target, &r.StartedAt, &r.FinishedAt,
			&r.Inspected, &r.Changed, &r.Unmapped, &r.Failed, &r.Interrupted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
