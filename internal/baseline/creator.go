// Package baseline builds and incrementally updates the traceability map for
// one (repository, branch): extraction and link classification over the
// repository's documentation and code, and the commit-driven update path
// that re-links exactly what a change invalidated.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/scan"
	"github.com/mhelmih/docureco/internal/storage"
)

// ErrMapExists signals that a map is already stored and force was not set.
var ErrMapExists = errors.New("baseline map already exists; use --force to overwrite")

// Snapshotter produces the flat file view of a repository at a ref.
type Snapshotter interface {
	Snapshot(ctx context.Context, owner, repo, ref string) ([]scan.File, error)
}

// Result is what both pipelines hand back to the CLI.
type Result struct {
	Map   *models.BaselineMap
	Stats models.RunStats
}

// CreatorOptions tune the creation pipeline.
type CreatorOptions struct {
	// ExtractConcurrency caps parallel per-file extractions (default 4).
	ExtractConcurrency int
	// Force overwrites an existing map.
	Force bool
}

// Creator runs the one-time bootstrap that builds a baseline map from
// scratch.
type Creator struct {
	extractor *Extractor
	linker    *Linker
	store     storage.Store
	scanner   Snapshotter
	logger    *slog.Logger
	opts      CreatorOptions
}

// NewCreator wires the creation pipeline.
func NewCreator(extractor *Extractor, linker *Linker, store storage.Store, scanner Snapshotter, logger *slog.Logger, opts CreatorOptions) *Creator {
	if opts.ExtractConcurrency <= 0 {
		opts.ExtractConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Creator{
		extractor: extractor,
		linker:    linker,
		store:     store,
		scanner:   scanner,
		logger:    logger.With("component", "creator"),
		opts:      opts,
	}
}

// Run builds and saves the baseline map for repository ("owner/name") at
// branch. Any fatal failure aborts without leaving a partial map behind.
func (c *Creator) Run(ctx context.Context, repository, branch string) (*Result, error) {
	stats := models.RunStats{RunID: uuid.NewString()}

	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	exists, err := c.store.Exists(ctx, repository, branch)
	if err != nil {
		return nil, apperrors.GraphBackend(err, "check for existing map")
	}
	if exists && !c.opts.Force {
		return nil, ErrMapExists
	}

	files, err := c.scanner.Snapshot(ctx, owner, name, branch)
	if err != nil {
		return nil, err
	}
	sddFiles, srsFiles, codeFiles := scan.SplitDocs(files)
	if len(sddFiles) == 0 && len(srsFiles) == 0 {
		return nil, apperrors.InputMissing(
			fmt.Sprintf("no SDD or SRS documents found in %s:%s", repository, branch))
	}
	c.logger.Info("scan complete",
		"sdd_files", len(sddFiles), "srs_files", len(srsFiles), "code_files", len(codeFiles))

	// Extraction fan-out per SDD file; merge preserves file order so the
	// serialized ID assignment below is deterministic.
	sddResults, err := runIndexed(ctx, c.opts.ExtractConcurrency, sddFiles, func(ctx context.Context, f scan.File) (*SDDExtraction, error) {
		return c.extractor.ExtractSDD(ctx, f.Content, f.Path)
	})
	if err != nil {
		return nil, err
	}

	m := &models.BaselineMap{Repository: repository, Branch: branch}
	var matrix []models.TraceabilityMatrixRow
	sddContent := make(map[string]string, len(sddFiles))
	deCounters := make(map[string]int)

	for i, f := range sddFiles {
		sddContent[f.Path] = f.Content
		for _, el := range sddResults[i].Elements {
			deCounters[f.Path]++
			m.DesignElements = append(m.DesignElements, models.DesignElement{
				ID:          models.NewDesignElementID(f.Path, deCounters[f.Path]),
				ReferenceID: el.ReferenceID,
				Name:        el.Name,
				Description: el.Description,
				Type:        el.Type,
				Section:     el.Section,
				FilePath:    f.Path,
			})
		}
		matrix = append(matrix, sddResults[i].MatrixRows...)
	}

	// SRS extraction is primed with the full SDD matrix, so it runs after
	// the SDD fan-in.
	srsResults, err := runIndexed(ctx, c.opts.ExtractConcurrency, srsFiles, func(ctx context.Context, f scan.File) (*SRSExtraction, error) {
		return c.extractor.ExtractSRS(ctx, f.Content, f.Path, matrix)
	})
	if err != nil {
		return nil, err
	}

	reqCounters := make(map[string]int)
	for i, f := range srsFiles {
		for _, r := range srsResults[i].Requirements {
			reqCounters[f.Path]++
			m.Requirements = append(m.Requirements, models.Requirement{
				ID:          models.NewRequirementID(f.Path, reqCounters[f.Path]),
				ReferenceID: r.ReferenceID,
				Title:       r.Title,
				Description: r.Description,
				Type:        r.Type,
				Priority:    r.Priority,
				Section:     r.Section,
				FilePath:    f.Path,
			})
		}
		for _, el := range srsResults[i].Elements {
			deCounters[f.Path]++
			m.DesignElements = append(m.DesignElements, models.DesignElement{
				ID:          models.NewDesignElementID(f.Path, deCounters[f.Path]),
				ReferenceID: el.ReferenceID,
				Name:        el.Name,
				Description: el.Description,
				Type:        el.Type,
				Section:     el.Section,
				FilePath:    f.Path,
			})
		}
	}

	// Code inventory: one component per scanned code path.
	codeContents := make(map[string]string, len(codeFiles))
	for i, f := range codeFiles {
		m.CodeComponents = append(m.CodeComponents, models.CodeComponent{
			ID:   models.NewCodeComponentID(i + 1),
			Path: f.Path,
			Name: path.Base(f.Path),
			Type: componentType(f.Path),
		})
		codeContents[f.Path] = f.Content
	}

	// Link classification: D->D first, then R->D, then D->C with the fresh
	// design links as context. A ValidationFailed reply gets one retry.
	ddLinks, err := retryOnValidation(ctx, c.logger, func() ([]models.TraceabilityLink, error) {
		return c.linker.ClassifyDesignLinks(ctx, m.DesignElements, matrix)
	})
	if err != nil {
		return nil, err
	}
	rdLinks, err := retryOnValidation(ctx, c.logger, func() ([]models.TraceabilityLink, error) {
		return c.linker.ClassifyRequirementLinks(ctx, m.Requirements, m.DesignElements, matrix, sddContent)
	})
	if err != nil {
		return nil, err
	}
	dcLinks, err := retryOnValidation(ctx, c.logger, func() ([]models.TraceabilityLink, error) {
		return c.linker.ClassifyCodeLinks(ctx, m.DesignElements, m.CodeComponents, codeContents, ddLinks)
	})
	if err != nil {
		return nil, err
	}

	// Link IDs are minted here, after every fan-out has joined.
	serials := map[string]int{}
	for _, links := range [][]models.TraceabilityLink{rdLinks, ddLinks, dcLinks} {
		for _, l := range links {
			prefix := models.LinkKindPrefix(l.SourceType, l.TargetType)
			serials[prefix]++
			l.ID = models.NewLinkID(prefix, serials[prefix])
			m.Links = append(m.Links, l)
		}
	}

	if c.opts.Force && exists {
		existing, err := c.store.Get(ctx, repository, branch)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.GraphBackend(err, "load existing map for overwrite")
		}
		if existing != nil {
			m.Version = existing.Version
			m.CreatedAt = existing.CreatedAt
		}
	}

	if err := saveMap(ctx, c.store, m); err != nil {
		return nil, err
	}

	stats.Requirements = len(m.Requirements)
	stats.DesignElements = len(m.DesignElements)
	stats.CodeComponents = len(m.CodeComponents)
	stats.Links = len(m.Links)
	if counter, ok := c.extractor.llm.(interface{ Retries() int64 }); ok {
		stats.LLMRetries = int(counter.Retries())
	}

	c.logger.Info("baseline map created",
		"repository", repository, "branch", branch,
		"requirements", stats.Requirements,
		"design_elements", stats.DesignElements,
		"code_components", stats.CodeComponents,
		"links", stats.Links)
	return &Result{Map: m, Stats: stats}, nil
}

// saveMap writes the map, mapping a lost optimistic-version race to a
// GraphConflict the orchestrator can rerun on.
func saveMap(ctx context.Context, store storage.Store, m *models.BaselineMap) error {
	err := store.Save(ctx, m)
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.GraphConflict("map changed during the run").
			WithContext("repository", m.Repository).
			WithContext("branch", m.Branch)
	}
	if err != nil {
		return apperrors.GraphBackend(err, "save baseline map")
	}
	return nil
}

// retryOnValidation retries a classification call once when the model
// produced an out-of-vocabulary or unknown-endpoint reply.
func retryOnValidation(ctx context.Context, logger *slog.Logger, call func() ([]models.TraceabilityLink, error)) ([]models.TraceabilityLink, error) {
	links, err := call()
	if err == nil || !apperrors.IsKind(err, apperrors.KindValidationFailed) {
		return links, err
	}
	if ctx.Err() != nil {
		return nil, err
	}
	logger.Warn("classification rejected, retrying once", "error", err)
	return call()
}

// runIndexed fans work over items with a bounded pool, returning results in
// input order. The first error cancels the remaining work.
func runIndexed[T any, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	g, gctx := newErrgroup(ctx, limit)
	for i := range items {
		i := i
		g.Go(func() error {
			r, err := fn(gctx, items[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func splitRepository(repository string) (owner, name string, err error) {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.Newf(apperrors.KindInternal, "repository must be owner/name, got %q", repository)
	}
	return parts[0], parts[1], nil
}

func componentType(filePath string) string {
	if ext := path.Ext(filePath); ext != "" {
		return ext
	}
	return "File"
}
