package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/scan"
	"github.com/mhelmih/docureco/internal/storage"
)

// fakeLLM routes each request to a per-task handler and marshals the
// handler's value into the caller's output type, mimicking the gateway's
// strict parsing without a model.
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

// memStore is an in-memory Store with the same version protocol as the real
// backends.
type memStore struct {
	mu   sync.Mutex
	maps map[string]string // key -> payload JSON
	vers map[string]int64
}

func newMemStore() *memStore {
	return &memStore{maps: make(map[string]string), vers: make(map[string]int64)}
}

func storeKey(repository, branch string) string { return repository + "@" + branch }

func (s *memStore) Get(_ context.Context, repository, branch string) (*models.BaselineMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.maps[storeKey(repository, branch)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	var m models.BaselineMap
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, err
	}
	m.Version = s.vers[storeKey(repository, branch)]
	return &m, nil
}

func (s *memStore) Save(_ context.Context, m *models.BaselineMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(m.Repository, m.Branch)
	if s.vers[key] != m.Version {
		return storage.ErrConflict
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.maps[key] = string(payload)
	s.vers[key] = m.Version + 1
	m.Version++
	return nil
}

func (s *memStore) Exists(_ context.Context, repository, branch string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.maps[storeKey(repository, branch)]
	return ok, nil
}

func (s *memStore) Close() error { return nil }

// fakeScanner serves a fixed snapshot (or an error).
type fakeScanner struct {
	files []scan.File
	err   error
}

func (f *fakeScanner) Snapshot(context.Context, string, string, string) ([]scan.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

// fakeSource serves a fixed commit plus per-(path, ref) content.
type fakeSource struct {
	commit   *models.Commit
	parent   string
	contents map[string]string // "path@ref" -> content
}

func (f *fakeSource) CommitChanges(context.Context, string, string, string) (*models.Commit, string, error) {
	return f.commit, f.parent, nil
}

func (f *fakeSource) FileContentAt(_ context.Context, _, _, path, ref string) (string, error) {
	return f.contents[path+"@"+ref], nil
}
