package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/geoforecast/internal/grid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS tile_status (
		tile_index INTEGER PRIMARY KEY,
		status     TEXT NOT NULL,
		output     TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
`

// SQLiteStore keeps the quadrant status in a table, independent of what the
// output directories contain.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error when opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tile_status table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Status(ctx context.Context, tile grid.Tile) (Status, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM tile_status WHERE tile_index = ?`, tile.Index).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Pending, nil
	}
	if err != nil {
		return Pending, fmt.Errorf("failed to read status of %s: %w", tile, err)
	}
	if value == Done.String() {
		return Done, nil
	}
	return Pending, nil
}

func (s *SQLiteStore) MarkDone(ctx context.Context, tile grid.Tile, output string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tile_status (tile_index, status, output, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tile_index) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			updated_at = excluded.updated_at`,
		tile.Index, Done.String(), output, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to mark %s done: %w", tile, err)
	}
	return nil
}

// Output returns the file recorded for a finished quadrant.
func (s *SQLiteStore) Output(ctx context.Context, tile grid.Tile) (string, bool, error) {
	var output string
	err := s.db.QueryRowContext(ctx,
		`SELECT output FROM tile_status WHERE tile_index = ? AND status = ?`,
		tile.Index, Done.String()).Scan(&output)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return output, true, nil
}
