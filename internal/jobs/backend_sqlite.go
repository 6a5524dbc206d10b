package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteFileName          = "jobs.db"
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteBackend keeps every document in a single table with a bucket column,
// so moves are one UPDATE.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLiteBackend opens or creates jobs.db under root.
func OpenSQLiteBackend(root string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs directory: %w", err)
	}

	dbPath := filepath.Join(root, sqliteFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &SQLiteBackend{db: db, path: dbPath}, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (b *SQLiteBackend) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = b.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Init creates the schema on a fresh database and verifies the version on an
// existing one.
func (b *SQLiteBackend) Init(ctx context.Context) (bool, error) {
	var tableExists int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return false, fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if err := b.createSchema(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	var version int
	if err := b.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return false, fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, b.path)
	}
	return true, nil
}

func (b *SQLiteBackend) createSchema(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Exists(ctx context.Context, bucket Bucket, id string) (bool, error) {
	var count int
	err := retryOnBusy(ctx, func() error {
		return b.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM jobs WHERE id = ? AND bucket = ?", id, string(bucket),
		).Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("query job: %w", err)
	}
	return count > 0, nil
}

func (b *SQLiteBackend) Load(ctx context.Context, bucket Bucket, id string) ([]byte, error) {
	var data []byte
	err := retryOnBusy(ctx, func() error {
		return b.db.QueryRowContext(ctx,
			"SELECT document FROM jobs WHERE id = ? AND bucket = ?", id, string(bucket),
		).Scan(&data)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return data, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, bucket Bucket, id string, data []byte) error {
	_, err := b.execWithRetry(ctx,
		`INSERT INTO jobs (id, bucket, document, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            bucket = excluded.bucket,
            document = excluded.document,
            updated_at = excluded.updated_at`,
		id, string(bucket), data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Move(ctx context.Context, id string, from, to Bucket) error {
	res, err := b.execWithRetry(ctx,
		"UPDATE jobs SET bucket = ?, updated_at = ? WHERE id = ? AND bucket = ?",
		string(to), time.Now().UTC().Format(time.RFC3339Nano), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("move job: %w", err)
	}
	return requireAffected(res)
}

func (b *SQLiteBackend) Delete(ctx context.Context, bucket Bucket, id string) error {
	res, err := b.execWithRetry(ctx, "DELETE FROM jobs WHERE id = ? AND bucket = ?", id, string(bucket))
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return errDocumentNotFound
	}
	return nil
}

func (b *SQLiteBackend) List(ctx context.Context, bucket Bucket) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id FROM jobs WHERE bucket = ? ORDER BY id", string(bucket))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *SQLiteBackend) Location(bucket Bucket, id string) string {
	return fmt.Sprintf("%s#%s/%s", b.path, bucket, id)
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
