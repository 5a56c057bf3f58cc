// Package ledger records every reviewed image in SQLite so confirmed thresholds can be
// audited after the run.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mask-calibrator/internal/ledger/migrations"

	_ "modernc.org/sqlite"
)

// Entry is one reviewed image.
type Entry struct {
	ID         int64
	Image      string
	OutputDir  string
	Threshold  float64
	Foreground float64
	Status     string
	Error      string
	ReviewedAt time.Time
}

// Store persists review entries in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the ledger at path and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applySchema(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func applySchema(sqlDB *sql.DB, schema fs.FS) error {
	files, err := fs.Glob(schema, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(schema, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := sqlDB.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record inserts one entry. A zero ReviewedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	image := strings.TrimSpace(e.Image)
	if image == "" {
		return fmt.Errorf("image is required")
	}
	if e.Status == "" {
		return fmt.Errorf("status is required")
	}
	reviewedAt := e.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO reviews (
		   image,
		   output_dir,
		   threshold,
		   foreground,
		   status,
		   error,
		   reviewed_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		image,
		e.OutputDir,
		e.Threshold,
		e.Foreground,
		e.Status,
		e.Error,
		toMillis(reviewedAt),
	)
	if err != nil {
		return fmt.Errorf("record review: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, image, output_dir, threshold, foreground, status, error, reviewed_at
		   FROM reviews
		  ORDER BY reviewed_at DESC, id DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			reviewedAt int64
		)
		if err := rows.Scan(&e.ID, &e.Image, &e.OutputDir, &e.Threshold, &e.Foreground, &e.Status, &e.Error, &reviewedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		e.ReviewedAt = fromMillis(reviewedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return entries, nil
}
