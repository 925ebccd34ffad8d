// Package sqlitestore keeps JSON documents in a local SQLite database and
// implements the migration Store contract on top of them.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/taxomigrate/pkg/migration"
	"github.com/hazyhaar/taxomigrate/pkg/store"

	_ "modernc.org/sqlite"
)

// Store holds the records table.
type Store struct {
	db     *sql.DB
	fields store.Fields
	logger *slog.Logger
}

func openDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
}

// Open opens (or creates) the SQLite database at path and ensures the records
// table exists.
func Open(path string, fields store.Fields, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open record db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS records (
		id         TEXT PRIMARY KEY,
		doc        TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	// One writer at a time; concurrent deferred transactions would fail to upgrade their lock.
	db.SetMaxOpenConns(1)
	return &Store{db: db, fields: fields.WithDefaults(), logger: logger}, nil
}

// Close closes the SQLite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a whole document.
func (s *Store) Put(ctx context.Context, id string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (id, doc, updated_at) VALUES (?, ?, ?)`,
		id, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put %s: %w", id, err)
	}
	return nil
}

// Get returns the decoded document stored under id.
func (s *Store) Get(ctx context.Context, id string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM records WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, migration.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	doc := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return doc, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// ListRecords implements migration.Store. Documents that are not valid JSON
// objects are returned without a legacy field so the runner skips them.
func (s *Store) ListRecords(ctx context.Context) ([]migration.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []migration.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		doc := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			s.logger.Warn("undecodable document", "record", id, "error", err)
			records = append(records, migration.Record{ID: id})
			continue
		}
		records = append(records, s.toRecord(id, doc))
	}
	return records, rows.Err()
}

func (s *Store) toRecord(id string, doc map[string]any) migration.Record {
	rec := migration.Record{
		ID:     id,
		Legacy: migration.DecodeLegacy(doc[s.fields.Labels]),
	}
	rec.Backup = migration.DecodeBackup(doc[s.fields.Backup])
	return rec
}

// UpdateRecord implements migration.Store. The read-modify-write runs in one
// transaction.
func (s *Store) UpdateRecord(ctx context.Context, id string, u migration.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", id, errors.Join(migration.ErrUnavailable, err))
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM records WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", id, migration.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", id, err)
	}

	doc := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	doc[s.fields.Labels] = u.Labels
	doc[s.fields.Backup] = migration.MergeBackup(migration.DecodeBackup(doc[s.fields.Backup]), u.Backup)
	doc[s.fields.UpdatedAt] = u.UpdatedAt.UTC().Format(time.RFC3339Nano)

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET doc = ?, updated_at = ? WHERE id = ?`,
		string(out), u.UpdatedAt.Unix(), id); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	return nil
}
