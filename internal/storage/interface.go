// Package storage persists baseline maps keyed by (repository, branch).
// A map is saved as one atomic full replace; readers always observe a
// complete version, never a partial one.
package storage

import (
	"context"
	"errors"

	"github.com/mhelmih/docureco/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("baseline map not found")
	ErrConflict = errors.New("baseline map changed since it was read")
)

// Store defines the graph-store interface.
type Store interface {
	// Get returns the full map for (repository, branch), or ErrNotFound.
	Get(ctx context.Context, repository, branch string) (*models.BaselineMap, error)

	// Save atomically replaces the stored map. The map's Version must match
	// the stored version (0 for a map that does not exist yet); a mismatch
	// returns ErrConflict. On success the map's Version and UpdatedAt are
	// advanced in place.
	Save(ctx context.Context, m *models.BaselineMap) error

	// Exists reports whether a map is stored for (repository, branch).
	Exists(ctx context.Context, repository, branch string) (bool, error)

	// Close releases the backing connection.
	Close() error
}
