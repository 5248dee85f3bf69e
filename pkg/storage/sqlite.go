package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zfskit/workspaces/pkg/types"
)

// SQLiteStore implements Store on a single SQLite database file shared by
// every invocation on the host. WAL mode keeps concurrent short-lived
// readers and one writer from blocking each other; busy_timeout covers the
// brief writer-vs-writer window.
type SQLiteStore struct {
	db *sql.DB
}

// migrations is the ordered schema migration chain. PRAGMA user_version
// records how far a database has been migrated; opening a database with a
// higher version than we know fails rather than guessing.
var migrations = []func(ctx context.Context, tx *sql.Tx) error{
	func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
CREATE TABLE workspaces (
  id          TEXT NOT NULL,
  pool        TEXT NOT NULL,
  name        TEXT NOT NULL,
  owner       TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  expires_at  TEXT NOT NULL,
  deletes_at  TEXT NOT NULL,
  mountpoint  TEXT NOT NULL,
  provisional INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (pool, name)
);`)
		return err
	},
}

// NewSQLiteStore opens (creating if needed) the record store at path and
// brings the schema up to date.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", types.ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", types.ErrStoreUnavailable, err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: apply pragma: %v", types.ErrStoreUnavailable, err)
		}
	}

	if err := migrate(pctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %v", types.ErrStoreUnavailable, err)
	}
	if version > len(migrations) {
		return fmt.Errorf("%w: database schema version %d is newer than this build supports", types.ErrStoreUnavailable, version)
	}

	for ; version < len(migrations); version++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: begin migration: %v", types.ErrStoreUnavailable, err)
		}
		if err := migrations[version](ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: migrate to version %d: %v", types.ErrStoreUnavailable, version+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", version+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: record schema version: %v", types.ErrStoreUnavailable, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit migration: %v", types.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const workspaceColumns = "id, pool, name, owner, created_at, expires_at, deletes_at, mountpoint, provisional"

// Get returns the record for (pool, name).
func (s *SQLiteStore) Get(ctx context.Context, pool, name string) (*types.Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspaces WHERE pool = ? AND name = ?;",
		pool, name)
	ws, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s/%s: %w", pool, name, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", types.ErrStoreUnavailable, pool, name, err)
	}
	return ws, nil
}

// Scan returns all records ordered by pool then name.
func (s *SQLiteStore) Scan(ctx context.Context) ([]*types.Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspaces ORDER BY pool, name;")
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var workspaces []*types.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", types.ErrStoreUnavailable, err)
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", types.ErrStoreUnavailable, err)
	}
	return workspaces, nil
}

// Upsert persists the full record, replacing any existing row for its key.
func (s *SQLiteStore) Upsert(ctx context.Context, ws *types.Workspace) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO workspaces (id, pool, name, owner, created_at, expires_at, deletes_at, mountpoint, provisional)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (pool, name) DO UPDATE SET
  id          = excluded.id,
  owner       = excluded.owner,
  created_at  = excluded.created_at,
  expires_at  = excluded.expires_at,
  deletes_at  = excluded.deletes_at,
  mountpoint  = excluded.mountpoint,
  provisional = excluded.provisional;`,
		ws.ID, ws.Pool, ws.Name, ws.Owner,
		formatTime(ws.CreatedAt), formatTime(ws.ExpiresAt), formatTime(ws.DeletesAt),
		ws.Mountpoint, boolToInt(ws.Provisional))
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", types.ErrStoreUnavailable, ws.Key(), err)
	}
	return nil
}

// Remove deletes the record. Absent keys are a no-op success.
func (s *SQLiteStore) Remove(ctx context.Context, pool, name string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM workspaces WHERE pool = ? AND name = ?;", pool, name)
	if err != nil {
		return fmt.Errorf("%w: remove %s/%s: %v", types.ErrStoreUnavailable, pool, name, err)
	}
	return nil
}

// Rename changes a record's name within its pool.
func (s *SQLiteStore) Rename(ctx context.Context, pool, oldName, newName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: rename %s/%s: %v", types.ErrStoreUnavailable, pool, oldName, err)
	}
	defer func() { _ = tx.Rollback() }()

	var taken int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workspaces WHERE pool = ? AND name = ?;", pool, newName).Scan(&taken)
	if err != nil {
		return fmt.Errorf("%w: rename %s/%s: %v", types.ErrStoreUnavailable, pool, oldName, err)
	}
	if taken > 0 {
		return fmt.Errorf("workspace %s/%s: %w", pool, newName, types.ErrAlreadyExists)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE workspaces SET name = ? WHERE pool = ? AND name = ?;", newName, pool, oldName)
	if err != nil {
		return fmt.Errorf("%w: rename %s/%s: %v", types.ErrStoreUnavailable, pool, oldName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rename %s/%s: %v", types.ErrStoreUnavailable, pool, oldName, err)
	}
	if affected == 0 {
		return fmt.Errorf("workspace %s/%s: %w", pool, oldName, types.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: rename %s/%s: %v", types.ErrStoreUnavailable, pool, oldName, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*types.Workspace, error) {
	var ws types.Workspace
	var createdAt, expiresAt, deletesAt string
	var provisional int
	err := row.Scan(&ws.ID, &ws.Pool, &ws.Name, &ws.Owner,
		&createdAt, &expiresAt, &deletesAt, &ws.Mountpoint, &provisional)
	if err != nil {
		return nil, err
	}
	if ws.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if ws.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	if ws.DeletesAt, err = parseTime(deletesAt); err != nil {
		return nil, fmt.Errorf("deletes_at: %w", err)
	}
	ws.Provisional = provisional != 0
	return &ws, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
