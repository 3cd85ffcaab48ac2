package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mhelmih/docureco/internal/models"
)

// SQLiteStore persists maps in a local SQLite file (for local/development).
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL keeps readers unblocked while a writer holds the save transaction.
	db.Exec("PRAGMA journal_mode = WAL")
	db.Exec("PRAGMA busy_timeout = 5000")

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS baseline_maps (
		repository TEXT NOT NULL,
		branch     TEXT NOT NULL,
		version    INTEGER NOT NULL,
		payload    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (repository, branch)
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the full map for (repository, branch).
func (s *SQLiteStore) Get(ctx context.Context, repository, branch string) (*models.BaselineMap, error) {
	var row struct {
		Version   int64     `db:"version"`
		Payload   string    `db:"payload"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	query := `SELECT version, payload, created_at, updated_at FROM baseline_maps WHERE repository = ? AND branch = ?`
	if err := s.db.GetContext(ctx, &row, query, repository, branch); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get baseline map: %w", err)
	}

	var m models.BaselineMap
	if err := json.Unmarshal([]byte(row.Payload), &m); err != nil {
		return nil, fmt.Errorf("decode baseline map: %w", err)
	}
	m.Repository = repository
	m.Branch = branch
	m.Version = row.Version
	m.CreatedAt = row.CreatedAt
	m.UpdatedAt = row.UpdatedAt
	return &m, nil
}

// Save atomically replaces the stored map, enforcing the optimistic version
// check inside a single write transaction.
func (s *SQLiteStore) Save(ctx context.Context, m *models.BaselineMap) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullInt64
	var createdAt time.Time
	err = tx.QueryRowxContext(ctx,
		`SELECT version, created_at FROM baseline_maps WHERE repository = ? AND branch = ?`,
		m.Repository, m.Branch).Scan(&current, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		if m.Version != 0 {
			return ErrConflict
		}
	case err != nil:
		return fmt.Errorf("read current version: %w", err)
	default:
		if current.Int64 != m.Version {
			return ErrConflict
		}
	}

	now := time.Now().UTC()
	next := m.Version + 1
	if m.Version == 0 {
		createdAt = now
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode baseline map: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO baseline_maps (repository, branch, version, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (repository, branch) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		m.Repository, m.Branch, next, string(payload), createdAt, now)
	if err != nil {
		return fmt.Errorf("write baseline map: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	m.Version = next
	m.CreatedAt = createdAt
	m.UpdatedAt = now
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"repository": m.Repository,
			"branch":     m.Branch,
			"version":    next,
		}).Debug("Saved baseline map")
	}
	return nil
}

// Exists reports whether a map is stored for (repository, branch).
func (s *SQLiteStore) Exists(ctx context.Context, repository, branch string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM baseline_maps WHERE repository = ? AND branch = ?`,
		repository, branch)
	if err != nil {
		return false, fmt.Errorf("check baseline map: %w", err)
	}
	return n > 0, nil
}
