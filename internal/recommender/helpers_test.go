package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/storage"
)

// fakeLLM routes each request to a per-task handler and marshals the
// handler's value into the caller's output type.
type fakeLLM struct {
	mu       sync.Mutex
	handlers map[string]func(req llm.Request) (any, error)
	calls    map[string]int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		handlers: make(map[string]func(req llm.Request) (any, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeLLM) on(task string, handler func(req llm.Request) (any, error)) {
	f.handlers[task] = handler
}

func (f *fakeLLM) reply(task string, value any) {
	f.on(task, func(llm.Request) (any, error) { return value, nil })
}

func (f *fakeLLM) GenerateInto(_ context.Context, req llm.Request, out any) error {
	f.mu.Lock()
	f.calls[req.Task]++
	handler, ok := f.handlers[req.Task]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler for task %q", req.Task)
	}
	value, err := handler(req)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// fixedStore serves one map for every (repository, branch).
type fixedStore struct {
	m *models.BaselineMap
}

func (s *fixedStore) Get(context.Context, string, string) (*models.BaselineMap, error) {
	if s.m == nil {
		return nil, storage.ErrNotFound
	}
	return s.m, nil
}

func (s *fixedStore) Save(context.Context, *models.BaselineMap) error { return nil }

func (s *fixedStore) Exists(context.Context, string, string) (bool, error) {
	return s.m != nil, nil
}

func (s *fixedStore) Close() error { return nil }

// fakePRSource serves one canned PR.
type fakePRSource struct {
	pr       *models.PullRequest
	contents map[string]string
}

func (f *fakePRSource) FetchPullRequest(context.Context, string, string, int) (*models.PullRequest, error) {
	return f.pr, nil
}

func (f *fakePRSource) FileContentAt(_ context.Context, _, _, path, _ string) (string, error) {
	return f.contents[path], nil
}

// tracedMap is a small map: REQ-001 -> C01 -> src/auth.py, plus an unmapped
// component src/util.py and an unscanned path src/new.py.
func tracedMap() *models.BaselineMap {
	return &models.BaselineMap{
		Repository: "acme/library",
		Branch:     "main",
		Requirements: []models.Requirement{
			{ID: "REQ-docs/srs.md-001", ReferenceID: "REQ-001", Title: "Login", FilePath: "docs/srs.md", Section: "3.1 Login"},
		},
		DesignElements: []models.DesignElement{
			{ID: "DE-docs/sdd.md-001", ReferenceID: "C01", Name: "AuthService", FilePath: "docs/sdd.md", Section: "4.2 AuthService"},
		},
		CodeComponents: []models.CodeComponent{
			{ID: "CC-001", Path: "src/auth.py", Name: "auth.py", Type: ".py"},
			{ID: "CC-002", Path: "src/util.py", Name: "util.py", Type: ".py"},
		},
		Links: []models.TraceabilityLink{
			{ID: "RD-001", SourceType: models.KindRequirement, SourceID: "REQ-docs/srs.md-001",
				TargetType: models.KindDesignElement, TargetID: "DE-docs/sdd.md-001", RelationshipType: "satisfies"},
			{ID: "DC-001", SourceType: models.KindDesignElement, SourceID: "DE-docs/sdd.md-001",
				TargetType: models.KindCodeComponent, TargetID: "CC-001", RelationshipType: "implements"},
		},
	}
}

func classification(file string, t models.ChangeType) models.ChangeClassification {
	return models.ChangeClassification{
		File:      file,
		Type:      t,
		Scope:     models.ScopeFunctionMethod,
		Nature:    models.NatureBugFix,
		Volume:    models.VolumeSmall,
		CommitSHA: "abc123",
	}
}
