package baseline

import (
	"context"
	"log/slog"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/graph"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/semantic"
)

// proposedLink is the wire shape every classification call returns.
type proposedLink struct {
	SourceID         string `json:"source_id"`
	TargetID         string `json:"target_id"`
	RelationshipType string `json:"relationship_type"`
}

type linkResponse struct {
	Relationships []proposedLink `json:"relationships"`
}

// Linker converts matrix rows plus semantic analysis into typed links. Every
// returned edge passed endpoint and vocabulary validation; a reply carrying
// an unknown reference or an out-of-vocabulary type is rejected with a
// ValidationFailed error so the caller can decide whether to retry.
type Linker struct {
	llm     LLM
	matcher semantic.Matcher
	logger  *slog.Logger
}

// NewLinker builds a link classifier. matcher may be nil, which disables
// candidate pruning.
func NewLinker(gateway LLM, matcher semantic.Matcher, logger *slog.Logger) *Linker {
	if matcher == nil {
		matcher = semantic.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{llm: gateway, matcher: matcher, logger: logger.With("component", "linker")}
}

// ClassifyDesignLinks produces design-to-design edges. A proposed edge that
// would close a directed cycle is dropped, keeping the subgraph acyclic.
// Returned edges carry surrogate IDs.
func (l *Linker) ClassifyDesignLinks(ctx context.Context, elements []models.DesignElement, matrix []models.TraceabilityMatrixRow) ([]models.TraceabilityLink, error) {
	if len(elements) < 2 {
		return nil, nil
	}

	var out linkResponse
	req := llm.NewRequest(llm.TaskClassifyDD, designLinksSystemPrompt, designLinksPrompt(elements, matrix))
	if err := l.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	byRef := designElementsByRef(elements)
	var links []models.TraceabilityLink
	dropped := 0
	for _, rel := range out.Relationships {
		source, ok := byRef[rel.SourceID]
		if !ok {
			return nil, apperrors.ValidationFailedf("design link source %q is not a known reference_id", rel.SourceID)
		}
		target, ok := byRef[rel.TargetID]
		if !ok {
			return nil, apperrors.ValidationFailedf("design link target %q is not a known reference_id", rel.TargetID)
		}
		if !models.AllowedRelationship(models.KindDesignElement, models.KindDesignElement, rel.RelationshipType) {
			return nil, apperrors.ValidationFailedf("relationship %q is out of vocabulary for design links", rel.RelationshipType)
		}
		candidate := models.TraceabilityLink{
			SourceType:       models.KindDesignElement,
			SourceID:         source.ID,
			TargetType:       models.KindDesignElement,
			TargetID:         target.ID,
			RelationshipType: rel.RelationshipType,
		}
		// Tie-break: an edge that would create a cycle is dropped.
		if graph.WouldCreateDesignCycle(links, candidate) {
			dropped++
			continue
		}
		links = append(links, candidate)
	}

	l.logger.Info("classified design links", "links", len(links), "cycle_dropped", dropped)
	return links, nil
}

// ClassifyRequirementLinks produces requirement-to-design edges.
func (l *Linker) ClassifyRequirementLinks(ctx context.Context, reqs []models.Requirement, elements []models.DesignElement, matrix []models.TraceabilityMatrixRow, sddContent map[string]string) ([]models.TraceabilityLink, error) {
	if len(reqs) == 0 || len(elements) == 0 {
		return nil, nil
	}

	var out linkResponse
	req := llm.NewRequest(llm.TaskClassifyRD, requirementLinksSystemPrompt,
		requirementLinksPrompt(reqs, elements, matrix, sddContent))
	if err := l.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	reqByRef := make(map[string]models.Requirement, len(reqs))
	for _, r := range reqs {
		if _, exists := reqByRef[r.ReferenceID]; !exists {
			reqByRef[r.ReferenceID] = r
		}
	}
	elByRef := designElementsByRef(elements)

	var links []models.TraceabilityLink
	for _, rel := range out.Relationships {
		source, ok := reqByRef[rel.SourceID]
		if !ok {
			return nil, apperrors.ValidationFailedf("requirement link source %q is not a known reference_id", rel.SourceID)
		}
		target, ok := elByRef[rel.TargetID]
		if !ok {
			return nil, apperrors.ValidationFailedf("requirement link target %q is not a known reference_id", rel.TargetID)
		}
		if !models.AllowedRelationship(models.KindRequirement, models.KindDesignElement, rel.RelationshipType) {
			return nil, apperrors.ValidationFailedf("relationship %q is out of vocabulary for requirement links", rel.RelationshipType)
		}
		links = append(links, models.TraceabilityLink{
			SourceType:       models.KindRequirement,
			SourceID:         source.ID,
			TargetType:       models.KindDesignElement,
			TargetID:         target.ID,
			RelationshipType: rel.RelationshipType,
		})
	}

	l.logger.Info("classified requirement links", "links", len(links))
	return links, nil
}

// ClassifyCodeLinks produces design-to-code edges. The design-to-design
// edges created earlier bias the model toward a coherent mapping; the
// semantic matcher, when configured, prunes the component set first.
func (l *Linker) ClassifyCodeLinks(ctx context.Context, elements []models.DesignElement, components []models.CodeComponent, contents map[string]string, designLinks []models.TraceabilityLink) ([]models.TraceabilityLink, error) {
	if len(elements) == 0 || len(components) == 0 {
		return nil, nil
	}

	targets, err := l.matcher.PruneCodeTargets(ctx, elements, components)
	if err != nil {
		// The matcher is an accelerator, never load-bearing.
		l.logger.Warn("semantic pruning failed, classifying against all components", "error", err)
		targets = components
	}
	if len(targets) == 0 {
		targets = components
	}

	var out linkResponse
	req := llm.NewRequest(llm.TaskClassifyDC, codeLinksSystemPrompt,
		codeLinksPrompt(elements, targets, contents, designLinks))
	if err := l.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	elByRef := designElementsByRef(elements)
	compByID := make(map[string]models.CodeComponent, len(components))
	for _, c := range components {
		compByID[c.ID] = c
	}

	var links []models.TraceabilityLink
	for _, rel := range out.Relationships {
		source, ok := elByRef[rel.SourceID]
		if !ok {
			return nil, apperrors.ValidationFailedf("code link source %q is not a known reference_id", rel.SourceID)
		}
		target, ok := compByID[rel.TargetID]
		if !ok {
			return nil, apperrors.ValidationFailedf("code link target %q is not a known code component", rel.TargetID)
		}
		if !models.AllowedRelationship(models.KindDesignElement, models.KindCodeComponent, rel.RelationshipType) {
			return nil, apperrors.ValidationFailedf("relationship %q is out of vocabulary for code links", rel.RelationshipType)
		}
		links = append(links, models.TraceabilityLink{
			SourceType:       models.KindDesignElement,
			SourceID:         source.ID,
			TargetType:       models.KindCodeComponent,
			TargetID:         target.ID,
			RelationshipType: rel.RelationshipType,
		})
	}

	l.logger.Info("classified code links", "links", len(links))
	return links, nil
}

func designElementsByRef(elements []models.DesignElement) map[string]models.DesignElement {
	byRef := make(map[string]models.DesignElement, len(elements))
	for _, e := range elements {
		// First extraction wins on a reference collision across files;
		// uniqueness is only guaranteed within one file.
		if _, exists := byRef[e.ReferenceID]; !exists {
			byRef[e.ReferenceID] = e
		}
	}
	return byRef
}
