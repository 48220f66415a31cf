// Package bookmark remembers the unit last read in each input file.
package bookmark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var (
	// ErrNoBookmark is returned when no position was saved for a file.
	ErrNoBookmark = errors.New("no saved position")

	// ErrStaleBookmark is returned when the file changed since its position was saved.
	ErrStaleBookmark = errors.New("saved position belongs to a different version of the text")
)

const (
	driverName = "sqlite"
	dirPerm    = 0o750

	schema = `CREATE TABLE IF NOT EXISTS positions (
	path        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	unit        INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
)`

	upsertPosition = `INSERT INTO positions (path, fingerprint, unit, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	fingerprint = excluded.fingerprint,
	unit = excluded.unit,
	updated_at = excluded.updated_at`

	selectPosition = `SELECT fingerprint, unit, updated_at FROM positions WHERE path = ?`
	deletePosition = `DELETE FROM positions WHERE path = ?`
)

// Position is the reading position saved for one file.
type Position struct {
	Path        string
	Fingerprint string
	Unit        int
	UpdatedAt   time.Time
}

// Store persists positions in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), dirPerm)
		if err != nil {
			return nil, fmt.Errorf("failed to create bookmark directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bookmark database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create bookmark schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records unit as the position in the file at path.
func (s *Store) Save(ctx context.Context, path, fingerprint string, unit int) error {
	key, err := canonicalPath(path)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, upsertPosition, key, fingerprint, unit, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save position for %s: %w", path, err)
	}

	return nil
}

// Load returns the position saved for path. It fails with ErrStaleBookmark,
// along with the stale position, when fingerprint differs from the saved one.
func (s *Store) Load(ctx context.Context, path, fingerprint string) (Position, error) {
	key, err := canonicalPath(path)
	if err != nil {
		return Position{}, err
	}

	var (
		saved   string
		unit    int
		updated int64
	)

	err = s.db.QueryRowContext(ctx, selectPosition, key).Scan(&saved, &unit, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, fmt.Errorf("%w for %s", ErrNoBookmark, path)
	}

	if err != nil {
		return Position{}, fmt.Errorf("failed to load position for %s: %w", path, err)
	}

	position := Position{
		Path:        key,
		Fingerprint: saved,
		Unit:        unit,
		UpdatedAt:   time.Unix(updated, 0),
	}

	if saved != fingerprint {
		return position, fmt.Errorf("%w: %s", ErrStaleBookmark, path)
	}

	return position, nil
}

// Forget removes the position saved for path, if any.
func (s *Store) Forget(ctx context.Context, path string) error {
	key, err := canonicalPath(path)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, deletePosition, key)
	if err != nil {
		return fmt.Errorf("failed to forget position for %s: %w", path, err)
	}

	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	return abs, nil
}
