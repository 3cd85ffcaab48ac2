package baseline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhelmih/docureco/internal/graph"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/scan"
)

// seededStore persists a two-document map with one code component and a full
// link chain: REQ-001 -> C01 -> CC-001.
func seededStore(t *testing.T) *memStore {
	t.Helper()
	store := newMemStore()
	m := &models.BaselineMap{
		Repository: "acme/library",
		Branch:     "main",
		Requirements: []models.Requirement{
			{ID: "REQ-docs/srs.md-001", ReferenceID: "REQ-001", Title: "Register book", FilePath: "docs/srs.md"},
		},
		DesignElements: []models.DesignElement{
			{ID: "DE-docs/sdd.md-001", ReferenceID: "C01", Name: "Catalog", Description: "catalog", FilePath: "docs/sdd.md"},
			{ID: "DE-docs/sdd.md-002", ReferenceID: "C02", Name: "Loan", Description: "loan", FilePath: "docs/sdd.md"},
		},
		CodeComponents: []models.CodeComponent{
			{ID: "CC-001", Path: "src/auth.py", Name: "auth.py", Type: ".py"},
		},
		Links: []models.TraceabilityLink{
			{ID: "RD-001", SourceType: models.KindRequirement, SourceID: "REQ-docs/srs.md-001",
				TargetType: models.KindDesignElement, TargetID: "DE-docs/sdd.md-001", RelationshipType: "satisfies"},
			{ID: "DD-001", SourceType: models.KindDesignElement, SourceID: "DE-docs/sdd.md-002",
				TargetType: models.KindDesignElement, TargetID: "DE-docs/sdd.md-001", RelationshipType: "depends_on"},
			{ID: "DC-001", SourceType: models.KindDesignElement, SourceID: "DE-docs/sdd.md-001",
				TargetType: models.KindCodeComponent, TargetID: "CC-001", RelationshipType: "implements"},
		},
	}
	require.NoError(t, store.Save(context.Background(), m))
	return store
}

func newTestUpdater(fake *fakeLLM, store *memStore, scanner *fakeScanner, source *fakeSource) *Updater {
	return NewUpdater(
		NewDiffAnalyzer(fake, nil),
		NewRelinker(fake, nil, 10, 2),
		store, scanner, source, nil,
		UpdaterOptions{BatchSize: 10, Concurrency: 2},
	)
}

func emptyRelinkReplies(fake *fakeLLM) {
	fake.reply(llm.TaskRelinkDocuments, map[string]any{"links_by_source": map[string]any{}})
	fake.reply(llm.TaskRelinkCode, map[string]any{"links_by_source": map[string]any{}})
}

func TestUpdaterNoBaselineIsNoOp(t *testing.T) {
	updater := newTestUpdater(newFakeLLM(), newMemStore(), &fakeScanner{}, &fakeSource{})
	result, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.NoError(t, err)
	assert.True(t, result.NoBaseline)
}

func TestUpdaterDeletionCascade(t *testing.T) {
	store := seededStore(t)
	fake := newFakeLLM()
	emptyRelinkReplies(fake)

	source := &fakeSource{
		commit: &models.Commit{
			SHA:   "abc123",
			Files: []models.FileChange{{Filename: "docs/sdd.md", Status: models.FileStatusRemoved}},
		},
		parent:   "parent1",
		contents: map[string]string{"docs/sdd.md@parent1": "# old sdd"},
	}
	scanner := &fakeScanner{files: []scan.File{{Path: "src/auth.py", Content: "def login(): pass"}}}

	updater := newTestUpdater(fake, store, scanner, source)
	result, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.NoError(t, err)

	m := result.Map
	// Every node of the deleted document is gone, with every touching edge.
	assert.Empty(t, m.DesignElements)
	assert.Empty(t, m.Links)

	// Other files' nodes are untouched.
	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "REQ-docs/srs.md-001", m.Requirements[0].ID)
	// Acyclicity is trivially preserved.
	assert.Nil(t, graph.DesignCycle(m.Links))
}

func TestUpdaterRenameAndModify(t *testing.T) {
	store := seededStore(t)
	fake := newFakeLLM()
	fake.reply(llm.TaskProposeDocChanges, map[string]any{
		"detected_changes": []map[string]string{
			{"reference_id": "C01", "element_type": "DesignElement",
				"description": "catalog with search", "detected_change_type": "modification"},
		},
	})
	fake.reply(llm.TaskReconcileChanges, map[string]any{
		"added": []map[string]any{},
		"modified": []map[string]any{
			{"reference_id": "C01", "element_type": "DesignElement",
				"changes": map[string]any{"description": map[string]string{"from": "catalog", "to": "catalog with search"}}},
		},
		"deleted": []map[string]any{},
	})
	fake.reply(llm.TaskRelinkDocuments, map[string]any{"links_by_source": map[string]any{}})
	fake.reply(llm.TaskRelinkCode, map[string]any{
		"links_by_source": map[string]any{
			"DE-docs/sdd.md-001": []map[string]string{
				{"target_id": "CC-002", "relationship_type": "implements"},
			},
		},
	})

	source := &fakeSource{
		commit: &models.Commit{
			SHA: "abc123",
			Files: []models.FileChange{
				{Filename: "docs/sdd.md", Status: models.FileStatusModified},
				{Filename: "src/auth/service.py", Status: models.FileStatusRenamed, PreviousFilename: "src/auth.py"},
			},
		},
		parent: "parent1",
		contents: map[string]string{
			"docs/sdd.md@parent1": "# old sdd",
			"docs/sdd.md@abc123":  "# new sdd",
		},
	}
	scanner := &fakeScanner{files: []scan.File{
		{Path: "src/auth/service.py", Content: "def login(): pass"},
	}}

	updater := newTestUpdater(fake, store, scanner, source)
	result, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.NoError(t, err)

	m := result.Map
	// The renamed-away component is gone; the new path got a fresh ID.
	_, found := m.CodeComponentByPath("src/auth.py")
	assert.False(t, found)
	cc, found := m.CodeComponentByPath("src/auth/service.py")
	require.True(t, found)
	assert.Equal(t, "CC-002", cc.ID)

	// The modification was applied in place.
	de, ok := m.DesignElementByID("DE-docs/sdd.md-001")
	require.True(t, ok)
	assert.Equal(t, "catalog with search", de.Description)

	// D->C links were regenerated against the new component, not rewired.
	var dcLinks []models.TraceabilityLink
	for _, l := range m.Links {
		if l.TargetType == models.KindCodeComponent {
			dcLinks = append(dcLinks, l)
		}
	}
	require.Len(t, dcLinks, 1)
	assert.Equal(t, "CC-002", dcLinks[0].TargetID)
	assert.Equal(t, "DE-docs/sdd.md-001", dcLinks[0].SourceID)
}

func TestUpdaterInvalidationPrecision(t *testing.T) {
	// Modifying C01 must drop C01's links but keep links that only touch
	// unchanged nodes... except those through C01 itself.
	store := seededStore(t)
	fake := newFakeLLM()
	fake.reply(llm.TaskProposeDocChanges, map[string]any{
		"detected_changes": []map[string]string{
			{"reference_id": "C01", "element_type": "DesignElement",
				"description": "x", "detected_change_type": "modification"},
		},
	})
	fake.reply(llm.TaskReconcileChanges, map[string]any{
		"added": []map[string]any{},
		"modified": []map[string]any{
			{"reference_id": "C01", "element_type": "DesignElement",
				"changes": map[string]any{"description": "x"}},
		},
		"deleted": []map[string]any{},
	})
	emptyRelinkReplies(fake)

	source := &fakeSource{
		commit: &models.Commit{
			SHA:   "abc123",
			Files: []models.FileChange{{Filename: "docs/sdd.md", Status: models.FileStatusModified}},
		},
		parent: "parent1",
		contents: map[string]string{
			"docs/sdd.md@parent1": "old",
			"docs/sdd.md@abc123":  "new",
		},
	}
	scanner := &fakeScanner{files: []scan.File{{Path: "src/auth.py", Content: "code"}}}

	updater := newTestUpdater(fake, store, scanner, source)
	result, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.NoError(t, err)

	// All three seeded links touch C01, so all are invalidated; the relink
	// replies are empty, so none come back.
	assert.Empty(t, result.Map.Links)
	// But the nodes themselves survive.
	assert.Len(t, result.Map.DesignElements, 2)
	assert.Len(t, result.Map.Requirements, 1)
}

func TestUpdaterAddsElementAndLinks(t *testing.T) {
	store := seededStore(t)
	fake := newFakeLLM()
	fake.reply(llm.TaskProposeDocChanges, map[string]any{
		"detected_changes": []map[string]string{
			{"reference_id": "C03", "element_type": "DesignElement", "name": "Reservations",
				"description": "reservation subsystem", "detected_change_type": "addition"},
		},
	})
	fake.reply(llm.TaskReconcileChanges, map[string]any{
		"added": []map[string]any{
			{"element_type": "DesignElement", "details": map[string]string{
				"reference_id": "C03", "name": "Reservations", "description": "reservation subsystem",
				"type": "Component", "section": "4.3 Reservations"}},
		},
		"modified": []map[string]any{},
		"deleted":  []map[string]any{},
	})
	fake.reply(llm.TaskRelinkDocuments, map[string]any{
		"links_by_source": map[string]any{
			// The new element links to an existing, unchanged node.
			"DE-docs/sdd.md-003": []map[string]string{
				{"target_id": "DE-docs/sdd.md-001", "target_type": "DesignElement", "relationship_type": "depends_on"},
			},
		},
	})
	fake.reply(llm.TaskRelinkCode, map[string]any{"links_by_source": map[string]any{}})

	source := &fakeSource{
		commit: &models.Commit{
			SHA:   "abc123",
			Files: []models.FileChange{{Filename: "docs/sdd.md", Status: models.FileStatusModified}},
		},
		parent: "parent1",
		contents: map[string]string{
			"docs/sdd.md@parent1": "old",
			"docs/sdd.md@abc123":  "new",
		},
	}
	scanner := &fakeScanner{files: []scan.File{{Path: "src/auth.py", Content: "code"}}}

	updater := newTestUpdater(fake, store, scanner, source)
	result, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.NoError(t, err)

	m := result.Map
	// The added element continues the file's serial sequence.
	de, ok := m.DesignElementByID("DE-docs/sdd.md-003")
	require.True(t, ok)
	assert.Equal(t, "C03", de.ReferenceID)

	// Its new link exists with a fresh DD serial.
	var dd []models.TraceabilityLink
	for _, l := range m.Links {
		if l.SourceID == "DE-docs/sdd.md-003" {
			dd = append(dd, l)
		}
	}
	require.Len(t, dd, 1)
	assert.Equal(t, "DD-002", dd[0].ID)
	assert.Nil(t, graph.DesignCycle(m.Links))
}

func TestUpdaterUnrelatedCommitKeepsStructure(t *testing.T) {
	store := seededStore(t)
	fake := newFakeLLM()
	emptyRelinkReplies(fake)

	source := &fakeSource{
		commit: &models.Commit{
			SHA:   "abc123",
			Files: []models.FileChange{{Filename: "README.md", Status: models.FileStatusModified}},
		},
		parent: "parent1",
	}
	scanner := &fakeScanner{files: []scan.File{{Path: "src/auth.py", Content: "code"}}}

	before, err := store.Get(context.Background(), "acme/library", "main")
	require.NoError(t, err)

	updater := newTestUpdater(fake, store, scanner, source)
	result, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.NoError(t, err)

	m := result.Map
	assert.Equal(t, before.Requirements, m.Requirements)
	assert.Equal(t, before.DesignElements, m.DesignElements)
	assert.Equal(t, before.CodeComponents, m.CodeComponents)
	assert.Equal(t, before.Links, m.Links)
	// Only the version advanced.
	assert.Equal(t, before.Version+1, m.Version)
}

func TestUpdaterBailsWhenScanFails(t *testing.T) {
	store := seededStore(t)
	fake := newFakeLLM()
	source := &fakeSource{
		commit: &models.Commit{
			SHA:   "abc123",
			Files: []models.FileChange{{Filename: "docs/sdd.md", Status: models.FileStatusRemoved}},
		},
		parent: "parent1",
	}
	scanner := &fakeScanner{err: assert.AnError}

	updater := newTestUpdater(fake, store, scanner, source)
	_, err := updater.Run(context.Background(), "acme/library", "main", "abc123")
	require.Error(t, err)

	// The persisted map is untouched.
	after, err := store.Get(context.Background(), "acme/library", "main")
	require.NoError(t, err)
	assert.Len(t, after.DesignElements, 2)
	assert.Len(t, after.Links, 3)
	assert.Equal(t, int64(1), after.Version)
}

func TestRebuildInventoryMirrorsSnapshot(t *testing.T) {
	m := &models.BaselineMap{
		CodeComponents: []models.CodeComponent{
			{ID: "CC-001", Path: "src/a.py"},
			{ID: "CC-002", Path: "src/gone.py"},
		},
	}
	inventory := rebuildInventory(m, []scan.File{
		{Path: "src/a.py"},
		{Path: "src/new.py"},
	})

	require.Len(t, inventory, 2)
	// Same path keeps its ID, a new path mints past the highest serial.
	assert.Equal(t, "CC-001", inventory[0].ID)
	assert.Equal(t, "CC-003", inventory[1].ID)
	assert.Equal(t, "src/new.py", inventory[1].Path)
}
