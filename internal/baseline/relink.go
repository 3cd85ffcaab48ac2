package baseline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/scan"
)

// linkCandidate is a new or freshly modified document node, in post-change
// form, queued for link regeneration. Its surrogate ID is already minted.
type linkCandidate struct {
	ID          string          `json:"id"`
	ElementType models.NodeKind `json:"element_type"`
	FilePath    string          `json:"file_path"`
	ReferenceID string          `json:"reference_id"`
	Name        string          `json:"name,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Section     string          `json:"section,omitempty"`
}

// docTarget is one entry of the post-update document-node population the
// model may link to.
type docTarget struct {
	ID          string          `json:"id"`
	ElementType models.NodeKind `json:"element_type"`
	FilePath    string          `json:"file_path"`
	ReferenceID string          `json:"reference_id"`
	Name        string          `json:"name,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
}

// codeTarget is one refreshed code component with content for context.
type codeTarget struct {
	ID             string `json:"id"`
	Path           string `json:"path"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	ContentPreview string `json:"content_preview,omitempty"`
}

type foundLink struct {
	TargetID         string          `json:"target_id"`
	TargetType       models.NodeKind `json:"target_type,omitempty"`
	RelationshipType string          `json:"relationship_type"`
}

type relinkResponse struct {
	LinksBySource map[string][]foundLink `json:"links_by_source"`
}

// relinkStats counts batch outcomes for the run summary.
type relinkStats struct {
	OK     int
	Failed int
}

// Relinker regenerates links for candidate nodes in parallel batches of
// bounded size. A batch that fails (transport, parse, or validation) is
// retried once and then skipped with a warning; other batches' results
// persist.
type Relinker struct {
	llm         LLM
	logger      *slog.Logger
	batchSize   int
	concurrency int
}

// NewRelinker builds a relinker. batchSize defaults to 10, concurrency to 4.
func NewRelinker(gateway LLM, logger *slog.Logger, batchSize, concurrency int) *Relinker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relinker{
		llm:         gateway,
		logger:      logger.With("component", "relink"),
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// generateDocumentLinks creates R->D and D->D links for the candidates
// against the full post-update document population. Returned links carry no
// IDs yet; assignment happens at the apply step after fan-in.
func (r *Relinker) generateDocumentLinks(ctx context.Context, candidates []linkCandidate, targets []docTarget) ([]models.TraceabilityLink, relinkStats) {
	targetKinds := make(map[string]models.NodeKind, len(targets))
	for _, t := range targets {
		targetKinds[t.ID] = t.ElementType
	}
	targetsJSON, _ := json.MarshalIndent(targets, "", "  ")

	return r.runBatches(ctx, candidates, func(ctx context.Context, batch []linkCandidate) ([]models.TraceabilityLink, error) {
		sourcesJSON, _ := json.MarshalIndent(batch, "", "  ")
		var out relinkResponse
		req := llm.NewRequest(llm.TaskRelinkDocuments, documentRelinkSystemPrompt,
			documentRelinkPrompt(string(sourcesJSON), string(targetsJSON)))
		if err := r.llm.GenerateInto(ctx, req, &out); err != nil {
			return nil, err
		}

		var links []models.TraceabilityLink
		for _, source := range batch {
			for _, fl := range out.LinksBySource[source.ID] {
				if fl.TargetID == source.ID {
					continue
				}
				targetKind, ok := targetKinds[fl.TargetID]
				if !ok {
					return nil, apperrors.ValidationFailedf("relink target %q is not in the document population", fl.TargetID)
				}
				if !models.AllowedRelationship(source.ElementType, targetKind, fl.RelationshipType) {
					return nil, apperrors.ValidationFailedf("relationship %q is out of vocabulary for %s -> %s",
						fl.RelationshipType, source.ElementType, targetKind)
				}
				links = append(links, models.TraceabilityLink{
					SourceType:       source.ElementType,
					SourceID:         source.ID,
					TargetType:       targetKind,
					TargetID:         fl.TargetID,
					RelationshipType: fl.RelationshipType,
				})
			}
		}
		return links, nil
	})
}

// generateCodeLinks creates D->C links for design-element candidates against
// the refreshed code inventory, with the document links created earlier in
// the same update as auxiliary context.
func (r *Relinker) generateCodeLinks(ctx context.Context, candidates []linkCandidate, inventory []models.CodeComponent, files []scan.File, docLinks []models.TraceabilityLink) ([]models.TraceabilityLink, relinkStats) {
	contents := make(map[string]string, len(files))
	for _, f := range files {
		contents[f.Path] = f.Content
	}
	targets := make([]codeTarget, 0, len(inventory))
	validTargets := make(map[string]bool, len(inventory))
	for _, c := range inventory {
		preview := contents[c.Path]
		if len(preview) > codeContentPreviewLimit {
			preview = preview[:codeContentPreviewLimit]
		}
		targets = append(targets, codeTarget{ID: c.ID, Path: c.Path, Name: c.Name, Type: c.Type, ContentPreview: preview})
		validTargets[c.ID] = true
	}
	targetsJSON, _ := json.MarshalIndent(targets, "", "  ")

	type contextLink struct {
		Source string `json:"source"`
		Target string `json:"target"`
		Type   string `json:"type"`
	}
	var contextLinks []contextLink
	for _, l := range docLinks {
		if l.SourceType == models.KindDesignElement && l.TargetType == models.KindDesignElement {
			contextLinks = append(contextLinks, contextLink{l.SourceID, l.TargetID, l.RelationshipType})
		}
	}
	contextJSON, _ := json.MarshalIndent(contextLinks, "", "  ")

	return r.runBatches(ctx, candidates, func(ctx context.Context, batch []linkCandidate) ([]models.TraceabilityLink, error) {
		sourcesJSON, _ := json.MarshalIndent(batch, "", "  ")
		var out relinkResponse
		req := llm.NewRequest(llm.TaskRelinkCode, codeRelinkSystemPrompt,
			codeRelinkPrompt(string(sourcesJSON), string(targetsJSON), string(contextJSON)))
		if err := r.llm.GenerateInto(ctx, req, &out); err != nil {
			return nil, err
		}

		var links []models.TraceabilityLink
		for _, source := range batch {
			for _, fl := range out.LinksBySource[source.ID] {
				if !validTargets[fl.TargetID] {
					return nil, apperrors.ValidationFailedf("relink target %q is not in the code inventory", fl.TargetID)
				}
				if !models.AllowedRelationship(models.KindDesignElement, models.KindCodeComponent, fl.RelationshipType) {
					return nil, apperrors.ValidationFailedf("relationship %q is out of vocabulary for design -> code", fl.RelationshipType)
				}
				links = append(links, models.TraceabilityLink{
					SourceType:       models.KindDesignElement,
					SourceID:         source.ID,
					TargetType:       models.KindCodeComponent,
					TargetID:         fl.TargetID,
					RelationshipType: fl.RelationshipType,
				})
			}
		}
		return links, nil
	})
}

// runBatches fans candidate batches over a bounded pool. Batch failures are
// isolated: one retry, then the batch is dropped with a warning.
func (r *Relinker) runBatches(ctx context.Context, candidates []linkCandidate, run func(context.Context, []linkCandidate) ([]models.TraceabilityLink, error)) ([]models.TraceabilityLink, relinkStats) {
	chunks := batched(candidates, r.batchSize)
	results := make([][]models.TraceabilityLink, len(chunks))

	var mu sync.Mutex
	stats := relinkStats{}

	g, gctx := newErrgroup(ctx, r.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			links, err := run(gctx, chunk)
			if err != nil && gctx.Err() == nil {
				r.logger.Warn("link batch failed, retrying once", "batch", i, "error", err)
				links, err = run(gctx, chunk)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				r.logger.Warn("link batch skipped after retry", "batch", i, "error", err)
				return nil
			}
			stats.OK++
			results[i] = links
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	g.Wait()

	var all []models.TraceabilityLink
	for _, links := range results {
		all = append(all, links...)
	}
	return all, stats
}
