package track

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	fileutil "songstream/internal/file"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	track_id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	duration TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Repository stores tracks in SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path and migrates it.
func Open(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}
	if path != ":memory:" {
		if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	// WAL is best-effort; in-memory databases reject it
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`)

	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InsertTrack stores t and returns its assigned id.
func (r *Repository) InsertTrack(ctx context.Context, t Track) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tracks (title, duration, created_at) VALUES (?, ?, ?)`,
		t.Title, t.Duration, t.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert track: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert track id: %w", err)
	}
	return id, nil
}

// ListTracks returns every stored track in insertion order.
func (r *Repository) ListTracks(ctx context.Context) ([]Track, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT track_id, title, duration, created_at FROM tracks ORDER BY track_id`)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		var (
			t  Track
			id int64
		)
		if err := rows.Scan(&id, &t.Title, &t.Duration, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.TrackID = &id
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return tracks, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
