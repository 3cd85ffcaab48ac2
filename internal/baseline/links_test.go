package baseline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

func sampleElements() []models.DesignElement {
	return []models.DesignElement{
		{ID: "DE-docs/sdd.md-001", ReferenceID: "Book-Class", Name: "Book", FilePath: "docs/sdd.md"},
		{ID: "DE-docs/sdd.md-002", ReferenceID: "C02", Name: "Loan", FilePath: "docs/sdd.md"},
		{ID: "DE-docs/sdd.md-003", ReferenceID: "UC01", Name: "Borrow", FilePath: "docs/sdd.md"},
	}
}

func TestClassifyDesignLinksMapsReferenceIDs(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyDD, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "C02", "target_id": "Book-Class", "relationship_type": "depends_on"},
		},
	})

	linker := NewLinker(fake, nil, nil)
	links, err := linker.ClassifyDesignLinks(context.Background(), sampleElements(), nil)
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "DE-docs/sdd.md-002", links[0].SourceID)
	assert.Equal(t, "DE-docs/sdd.md-001", links[0].TargetID)
	assert.Equal(t, models.RelationshipDependsOn, links[0].RelationshipType)
}

func TestClassifyDesignLinksDropsCycleClosingEdge(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyDD, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "Book-Class", "target_id": "C02", "relationship_type": "refines"},
			{"source_id": "C02", "target_id": "UC01", "relationship_type": "refines"},
			// Closes Book -> C02 -> UC01 -> Book; must be dropped.
			{"source_id": "UC01", "target_id": "Book-Class", "relationship_type": "realizes"},
		},
	})

	linker := NewLinker(fake, nil, nil)
	links, err := linker.ClassifyDesignLinks(context.Background(), sampleElements(), nil)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestClassifyDesignLinksRejectsUnknownReference(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyDD, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "Nope", "target_id": "Book-Class", "relationship_type": "refines"},
		},
	})

	linker := NewLinker(fake, nil, nil)
	_, err := linker.ClassifyDesignLinks(context.Background(), sampleElements(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidationFailed))
}

func TestClassifyDesignLinksRejectsOutOfVocabulary(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyDD, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "Book-Class", "target_id": "C02", "relationship_type": "satisfies"},
		},
	})

	linker := NewLinker(fake, nil, nil)
	_, err := linker.ClassifyDesignLinks(context.Background(), sampleElements(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidationFailed))
}

func TestClassifyRequirementLinks(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyRD, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "REQ-001", "target_id": "Book-Class", "relationship_type": "satisfies"},
		},
	})

	reqs := []models.Requirement{
		{ID: "REQ-docs/srs.md-001", ReferenceID: "REQ-001", Title: "Register book", FilePath: "docs/srs.md"},
	}
	linker := NewLinker(fake, nil, nil)
	links, err := linker.ClassifyRequirementLinks(context.Background(), reqs, sampleElements(), nil, nil)
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, models.KindRequirement, links[0].SourceType)
	assert.Equal(t, "REQ-docs/srs.md-001", links[0].SourceID)
	assert.Equal(t, "DE-docs/sdd.md-001", links[0].TargetID)
}

func TestClassifyCodeLinks(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyDC, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "Book-Class", "target_id": "CC-001", "relationship_type": "implements"},
		},
	})

	components := []models.CodeComponent{
		{ID: "CC-001", Path: "src/book.py", Name: "book.py", Type: ".py"},
	}
	linker := NewLinker(fake, nil, nil)
	links, err := linker.ClassifyCodeLinks(context.Background(), sampleElements(), components,
		map[string]string{"src/book.py": "class Book: pass"}, nil)
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, models.KindCodeComponent, links[0].TargetType)
	assert.Equal(t, "CC-001", links[0].TargetID)
}

func TestClassifyCodeLinksRejectsUnknownComponent(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskClassifyDC, map[string]any{
		"relationships": []map[string]string{
			{"source_id": "Book-Class", "target_id": "CC-999", "relationship_type": "implements"},
		},
	})

	linker := NewLinker(fake, nil, nil)
	_, err := linker.ClassifyCodeLinks(context.Background(), sampleElements(),
		[]models.CodeComponent{{ID: "CC-001", Path: "src/book.py"}}, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidationFailed))
}

func TestClassifyDesignLinksSkipsSingleElement(t *testing.T) {
	linker := NewLinker(newFakeLLM(), nil, nil)
	links, err := linker.ClassifyDesignLinks(context.Background(),
		sampleElements()[:1], nil)
	require.NoError(t, err)
	assert.Empty(t, links)
}
