package baseline

import (
	"context"
	"log/slog"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

// LLM is the slice of the gateway the pipelines consume.
type LLM interface {
	GenerateInto(ctx context.Context, req llm.Request, out any) error
}

// ExtractedElement is a design element as returned by extraction, before the
// caller assigns a surrogate ID.
type ExtractedElement struct {
	ReferenceID string `json:"reference_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Section     string `json:"section"`
}

// ExtractedRequirement is a requirement as returned by extraction.
type ExtractedRequirement struct {
	ReferenceID string `json:"reference_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Section     string `json:"section"`
}

// SDDExtraction is the result of one SDD file's extraction.
type SDDExtraction struct {
	Elements   []ExtractedElement
	MatrixRows []models.TraceabilityMatrixRow
}

// SRSExtraction is the result of one SRS file's extraction.
type SRSExtraction struct {
	Requirements []ExtractedRequirement
	Elements     []ExtractedElement
}

// Extractor turns Markdown documentation into structured elements. It returns
// pure data; surrogate IDs are minted by the caller at merge time.
type Extractor struct {
	llm    LLM
	logger *slog.Logger
}

// NewExtractor builds an extractor over the gateway.
func NewExtractor(gateway LLM, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: gateway, logger: logger.With("component", "extract")}
}

// ExtractSDD extracts design elements and raw traceability-matrix rows from
// one SDD file. Matrix rows whose target cannot be reconciled against an
// extracted reference_id are dropped.
func (e *Extractor) ExtractSDD(ctx context.Context, content, filePath string) (*SDDExtraction, error) {
	var out struct {
		DesignElements []ExtractedElement `json:"design_elements"`
		Matrix         []struct {
			SourceID         string `json:"source_id"`
			TargetID         string `json:"target_id"`
			RelationshipType string `json:"relationship_type"`
		} `json:"traceability_matrix"`
	}

	req := llm.NewRequest(llm.TaskExtractSDD, sddExtractionSystemPrompt, sddExtractionPrompt(content, filePath))
	if err := e.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	result := &SDDExtraction{}
	for _, el := range out.DesignElements {
		if el.ReferenceID == "" || el.Name == "" {
			return nil, apperrors.ValidationFailedf("design element missing reference_id or name in %s", filePath)
		}
		if el.Type == "" {
			el.Type = "Component"
		}
		if el.Section == "" {
			el.Section = filePath
		}
		result.Elements = append(result.Elements, el)
	}

	known := make(map[string]bool, len(result.Elements))
	for _, el := range result.Elements {
		known[el.ReferenceID] = true
	}

	dropped := 0
	for _, row := range out.Matrix {
		// Post-condition: every matrix target must resolve to an extracted
		// reference_id. Unreconciled rows never leave the extractor.
		if row.SourceID == "" || row.TargetID == "" || !known[row.TargetID] {
			dropped++
			continue
		}
		result.MatrixRows = append(result.MatrixRows, models.TraceabilityMatrixRow{
			SourceID:         row.SourceID,
			TargetID:         row.TargetID,
			RelationshipType: models.RelationshipUnclassified,
			SourceFile:       filePath,
		})
	}

	e.logger.Info("extracted sdd",
		"file", filePath,
		"design_elements", len(result.Elements),
		"matrix_rows", len(result.MatrixRows),
		"matrix_rows_dropped", dropped)
	return result, nil
}

// ExtractSRS extracts requirements plus additional design elements from one
// SRS file, primed with the SDD matrix so the model knows which artifacts
// downstream links will need.
func (e *Extractor) ExtractSRS(ctx context.Context, content, filePath string, matrix []models.TraceabilityMatrixRow) (*SRSExtraction, error) {
	var out struct {
		Requirements   []ExtractedRequirement `json:"requirements"`
		DesignElements []ExtractedElement     `json:"design_elements"`
	}

	req := llm.NewRequest(llm.TaskExtractSRS, srsExtractionSystemPrompt, srsExtractionPrompt(content, filePath, matrix))
	if err := e.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	result := &SRSExtraction{}
	for _, r := range out.Requirements {
		if r.ReferenceID == "" || r.Title == "" {
			return nil, apperrors.ValidationFailedf("requirement missing reference_id or title in %s", filePath)
		}
		if r.Type == "" {
			r.Type = "Functional"
		}
		if r.Priority == "" {
			r.Priority = "Medium"
		}
		if r.Section == "" {
			r.Section = filePath
		}
		result.Requirements = append(result.Requirements, r)
	}
	for _, el := range out.DesignElements {
		if el.ReferenceID == "" || el.Name == "" {
			return nil, apperrors.ValidationFailedf("design element missing reference_id or name in %s", filePath)
		}
		if el.Type == "" {
			el.Type = "Component"
		}
		if el.Section == "" {
			el.Section = filePath
		}
		result.Elements = append(result.Elements, el)
	}

	e.logger.Info("extracted srs",
		"file", filePath,
		"requirements", len(result.Requirements),
		"design_elements", len(result.Elements))
	return result, nil
}
