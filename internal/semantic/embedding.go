package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/sashabaranov/go-openai"

	"github.com/mhelmih/docureco/internal/models"
)

// EmbeddingMatcher ranks code components by cosine similarity to each design
// element's text representation and keeps the union of the top matches.
type EmbeddingMatcher struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	topK      int
	threshold float64
	logger    *slog.Logger
}

// NewEmbeddingMatcher creates a matcher backed by the OpenAI embeddings API.
func NewEmbeddingMatcher(apiKey string, logger *slog.Logger) *EmbeddingMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingMatcher{
		client:    openai.NewClient(apiKey),
		model:     openai.SmallEmbedding3,
		topK:      20,
		threshold: 0.2,
		logger:    logger.With("component", "semantic"),
	}
}

// PruneCodeTargets embeds both sides and keeps, per element, the topK most
// similar components above the threshold, unioned over all elements.
func (m *EmbeddingMatcher) PruneCodeTargets(ctx context.Context, elements []models.DesignElement, components []models.CodeComponent) ([]models.CodeComponent, error) {
	if len(elements) == 0 || len(components) == 0 {
		return components, nil
	}

	elementTexts := make([]string, len(elements))
	for i, e := range elements {
		elementTexts[i] = fmt.Sprintf("%s: %s (Type: %s)", e.Name, e.Description, e.Type)
	}
	componentTexts := make([]string, len(components))
	for i, c := range components {
		componentTexts[i] = fmt.Sprintf("File: %s (%s)", c.Path, c.Name)
	}

	elementVecs, err := m.embed(ctx, elementTexts)
	if err != nil {
		return nil, err
	}
	componentVecs, err := m.embed(ctx, componentTexts)
	if err != nil {
		return nil, err
	}

	keep := make(map[int]bool)
	for _, ev := range elementVecs {
		type scored struct {
			idx   int
			score float64
		}
		ranked := make([]scored, 0, len(componentVecs))
		for j, cv := range componentVecs {
			if s := cosine(ev, cv); s >= m.threshold {
				ranked = append(ranked, scored{j, s})
			}
		}
		sort.Slice(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
		for k := 0; k < len(ranked) && k < m.topK; k++ {
			keep[ranked[k].idx] = true
		}
	}

	pruned := make([]models.CodeComponent, 0, len(keep))
	for i, c := range components {
		if keep[i] {
			pruned = append(pruned, c)
		}
	}
	m.logger.Debug("pruned code targets",
		"elements", len(elements), "components", len(components), "kept", len(pruned))
	return pruned, nil
}

func (m *EmbeddingMatcher) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: m.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	vecs := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
