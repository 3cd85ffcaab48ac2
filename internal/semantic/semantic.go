// Package semantic is an optional accelerator for link classification: it
// prunes design-to-code candidate pairs by embedding similarity before the
// classifier sees them. The pipelines are correct without it; the default
// matcher keeps every candidate.
package semantic

import (
	"context"

	"github.com/mhelmih/docureco/internal/models"
)

// Matcher narrows the code-component target set for a group of design
// elements. Implementations must be safe to call with an empty element or
// component list.
type Matcher interface {
	// PruneCodeTargets returns the components plausibly related to at least
	// one of the elements. The result preserves the input order.
	PruneCodeTargets(ctx context.Context, elements []models.DesignElement, components []models.CodeComponent) ([]models.CodeComponent, error)
}

// Noop keeps every candidate. It is the default when no embedding key is
// configured.
type Noop struct{}

// PruneCodeTargets returns the components unchanged.
func (Noop) PruneCodeTargets(_ context.Context, _ []models.DesignElement, components []models.CodeComponent) ([]models.CodeComponent, error) {
	return components, nil
}
