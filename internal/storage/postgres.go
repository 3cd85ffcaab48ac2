package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/mhelmih/docureco/internal/models"
)

// PostgresStore persists maps in PostgreSQL (for shared/CI deployments).
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS baseline_maps (
		repository TEXT NOT NULL,
		branch     TEXT NOT NULL,
		version    BIGINT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (repository, branch)
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get returns the full map for (repository, branch).
func (s *PostgresStore) Get(ctx context.Context, repository, branch string) (*models.BaselineMap, error) {
	var row struct {
		Version   int64     `db:"version"`
		Payload   []byte    `db:"payload"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	query := `SELECT version, payload, created_at, updated_at FROM baseline_maps WHERE repository = $1 AND branch = $2`
	if err := s.db.GetContext(ctx, &row, query, repository, branch); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get baseline map: %w", err)
	}

	var m models.BaselineMap
	if err := json.Unmarshal(row.Payload, &m); err != nil {
		return nil, fmt.Errorf("decode baseline map: %w", err)
	}
	m.Repository = repository
	m.Branch = branch
	m.Version = row.Version
	m.CreatedAt = row.CreatedAt
	m.UpdatedAt = row.UpdatedAt
	return &m, nil
}

// Save atomically replaces the stored map. The row is locked for the span of
// the transaction so concurrent writers serialize on (repository, branch).
func (s *PostgresStore) Save(ctx context.Context, m *models.BaselineMap) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullInt64
	var createdAt time.Time
	err = tx.QueryRowxContext(ctx,
		`SELECT version, created_at FROM baseline_maps WHERE repository = $1 AND branch = $2 FOR UPDATE`,
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
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (repository, branch) DO UPDATE SET
			version = EXCLUDED.version,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		m.Repository, m.Branch, next, payload, createdAt, now)
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
func (s *PostgresStore) Exists(ctx context.Context, repository, branch string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM baseline_maps WHERE repository = $1 AND branch = $2`,
		repository, branch)
	if err != nil {
		return false, fmt.Errorf("check baseline map: %w", err)
	}
	return n > 0, nil
}
