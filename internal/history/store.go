// Package history keeps a queryable record of every archived failure.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// DefaultFileName is the database created inside the archive directory.
const DefaultFileName = "history.db"

// Entry is one recorded failure.
type Entry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	ProcessID  int       `json:"process_id"`
	File       string    `json:"file"`
	Line       int       `json:"line"`
	Function   string    `json:"function"`
	Condition  string    `json:"condition"`
	Message    string    `json:"message"`
	Outcome    string    `json:"outcome"`
}

// Hotspot aggregates failures at one location.
type Hotspot struct {
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Function  string    `json:"function"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Store is the SQLite failure history.
type Store struct {
	path string
	db   *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{path: path, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenInArchive opens the default database of an archive directory.
func OpenInArchive(dir string) (*Store, error) {
	return Open(filepath.Join(dir, DefaultFileName))
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	for i, migration := range []string{migrationV1} {
		version := i + 1
		if version <= current {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration transaction: %w", err)
		}
		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration v%d: %w", version, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", version, err)
		}
	}
	return nil
}

// splitStatements splits a script on semicolons, dropping comment lines.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}

// Record stores a dump. It reports false when the id was already known.
func (s *Store) Record(ctx context.Context, d *diagnostics.CrashDump) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO failures
		(id, occurred_at, process_id, file, line, function, condition, message, outcome, go_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Timestamp.UnixNano(), d.ProcessID, d.File, d.Line, d.Function,
		d.Condition, d.Message, d.Outcome, d.GoVersion,
	)
	if err != nil {
		return false, fmt.Errorf("recording failure %s: %w", d.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording failure %s: %w", d.ID, err)
	}
	return n > 0, nil
}

// Sync records every dump currently in the archive directory and returns
// how many were new.
func (s *Store) Sync(ctx context.Context, dir string) (int, error) {
	dumps, err := diagnostics.ListCrashDumps(dir)
	if err != nil {
		return 0, err
	}

	added := 0
	for i := range dumps {
		isNew, err := s.Record(ctx, &dumps[i])
		if err != nil {
			return added, err
		}
		if isNew {
			added++
		}
	}
	return added, nil
}

// Count returns the number of recorded failures.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM failures").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting failures: %w", err)
	}
	return n, nil
}

// Hotspots returns the locations that failed most often since the given
// time, or ever when since is zero. Ties go to the most recent.
func (s *Store) Hotspots(ctx context.Context, since time.Time, limit int) ([]Hotspot, error) {
	from := int64(math.MinInt64)
	if !since.IsZero() {
		from = since.UnixNano()
	}
	rows, err := s.db.QueryContext(ctx, `SELECT file, line, function, COUNT(*),
			MIN(occurred_at), MAX(occurred_at)
		FROM failures
		WHERE occurred_at >= ?
		GROUP BY file, line, function
		ORDER BY COUNT(*) DESC, MAX(occurred_at) DESC
		LIMIT ?`, from, limit)
	if err != nil {
		return nil, fmt.Errorf("querying hotspots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var spots []Hotspot
	for rows.Next() {
		var h Hotspot
		var first, last int64
		if err := rows.Scan(&h.File, &h.Line, &h.Function, &h.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning hotspot: %w", err)
		}
		h.FirstSeen = time.Unix(0, first).UTC()
		h.LastSeen = time.Unix(0, last).UTC()
		spots = append(spots, h)
	}
	return spots, rows.Err()
}

// Recent returns the latest failures, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, occurred_at, process_id, file, line,
			function, condition, message, outcome
		FROM failures
		ORDER BY occurred_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.ProcessID, &e.File, &e.Line,
			&e.Function, &e.Condition, &e.Message, &e.Outcome); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		e.OccurredAt = time.Unix(0, at).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
