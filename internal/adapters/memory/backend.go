// Package memory provides an in-process stub backend. It backs tests
// and dry runs; nothing is persisted.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/secondary"
)

// Backend is an in-memory tracker keyed by repository path. The zero
// value is not usable; construct with New.
type Backend struct {
	mu     sync.Mutex
	repos  map[string]map[string]*secondary.TaskRecord
	order  map[string][]string // insertion order per repo
	deps   map[string][]*secondary.Dependency
	nextID int

	// ClosedState is the terminal state Close assigns. Defaults to
	// "shipped" to match the builtin workflow.
	ClosedState string

	// CloseErr injects a failure for specific task ids; tests use it
	// to exercise partial-failure tolerance.
	CloseErr map[string]error
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		repos:       make(map[string]map[string]*secondary.TaskRecord),
		order:       make(map[string][]string),
		deps:        make(map[string][]*secondary.Dependency),
		ClosedState: "shipped",
		CloseErr:    make(map[string]error),
	}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Capabilities() secondary.Capabilities {
	return secondary.Capabilities{
		CanCreate:       true,
		CanUpdate:       true,
		CanDelete:       true,
		CanSearch:       true,
		CanQuery:        false,
		CanDependencies: true,
		CanWorkflows:    true,
		CanPrompts:      true,
	}
}

// Seed inserts tasks directly, preserving the given ids. Test helper.
func (b *Backend) Seed(repoPath string, tasks ...*secondary.TaskRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tasks {
		b.put(repoPath, t)
	}
}

func (b *Backend) put(repoPath string, t *secondary.TaskRecord) {
	repo, ok := b.repos[repoPath]
	if !ok {
		repo = make(map[string]*secondary.TaskRecord)
		b.repos[repoPath] = repo
	}
	if _, exists := repo[t.ID]; !exists {
		b.order[repoPath] = append(b.order[repoPath], t.ID)
	}
	repo[t.ID] = t
}

func (b *Backend) tasksInOrder(repoPath string) []*secondary.TaskRecord {
	var out []*secondary.TaskRecord
	for _, id := range b.order[repoPath] {
		if t, ok := b.repos[repoPath][id]; ok {
			out = append(out, t)
		}
	}
	return out
}

func matches(t *secondary.TaskRecord, f secondary.TaskFilters) bool {
	if f.State != "" && t.State != f.State {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Parent != "" && t.Parent != f.Parent {
		return false
	}
	if f.Label != "" {
		found := false
		for _, l := range t.Labels {
			if l == f.Label {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func clone(t *secondary.TaskRecord) *secondary.TaskRecord {
	c := *t
	c.Labels = append([]string(nil), t.Labels...)
	return &c
}

func (b *Backend) List(ctx context.Context, filters secondary.TaskFilters, repoPath string) ([]*secondary.TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*secondary.TaskRecord
	for _, t := range b.tasksInOrder(repoPath) {
		if matches(t, filters) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (b *Backend) ListReady(ctx context.Context, repoPath string) ([]*secondary.TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*secondary.TaskRecord
	for _, t := range b.tasksInOrder(repoPath) {
		if strings.HasPrefix(t.State, workflow.QueuedPrefix) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (b *Backend) Search(ctx context.Context, text string, repoPath string) ([]*secondary.TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	needle := strings.ToLower(text)
	var out []*secondary.TaskRecord
	for _, t := range b.tasksInOrder(repoPath) {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (b *Backend) Query(ctx context.Context, expr string, repoPath string) ([]*secondary.TaskRecord, error) {
	return nil, secondary.Unavailable("query", b.Name())
}

func (b *Backend) Get(ctx context.Context, id string, repoPath string) (*secondary.TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.repos[repoPath][id]; ok {
		return clone(t), nil
	}
	return nil, secondary.NotFound(id)
}

func (b *Backend) Create(ctx context.Context, task *secondary.TaskRecord, repoPath string) (*secondary.TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := clone(task)
	if t.ID == "" {
		b.nextID++
		t.ID = fmt.Sprintf("TASK-%03d", b.nextID)
	}
	now := time.Now().UTC()
	t.Created = now
	t.Updated = now
	b.put(repoPath, t)
	return clone(t), nil
}

func (b *Backend) Update(ctx context.Context, id string, fields secondary.UpdateFields, repoPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.repos[repoPath][id]
	if !ok {
		return secondary.NotFound(id)
	}
	if fields.Title != nil {
		t.Title = *fields.Title
	}
	if fields.Description != nil {
		t.Description = *fields.Description
	}
	if fields.Notes != nil {
		t.Notes = *fields.Notes
	}
	if fields.Acceptance != nil {
		t.Acceptance = *fields.Acceptance
	}
	if fields.State != nil {
		t.State = *fields.State
	}
	if fields.Priority != nil {
		t.Priority = *fields.Priority
	}
	if fields.Type != nil {
		t.Type = *fields.Type
	}
	if fields.Labels != nil {
		t.Labels = append([]string(nil), (*fields.Labels)...)
	}
	if fields.Parent != nil {
		t.Parent = *fields.Parent
	}
	t.Updated = time.Now().UTC()
	return nil
}

func (b *Backend) Delete(ctx context.Context, id string, repoPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.repos[repoPath][id]; !ok {
		return secondary.NotFound(id)
	}
	delete(b.repos[repoPath], id)
	return nil
}

func (b *Backend) Close(ctx context.Context, id string, reason string, repoPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.CloseErr[id]; ok && err != nil {
		return err
	}
	t, ok := b.repos[repoPath][id]
	if !ok {
		return secondary.NotFound(id)
	}
	t.State = b.ClosedState
	if reason != "" {
		t.Notes = strings.TrimSpace(t.Notes + "\nclosed: " + reason)
	}
	t.Updated = time.Now().UTC()
	return nil
}

func (b *Backend) ListDependencies(ctx context.Context, id string, repoPath string) ([]*secondary.Dependency, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*secondary.Dependency
	for _, d := range b.deps[repoPath] {
		if d.From == id || d.To == id {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (b *Backend) AddDependency(ctx context.Context, from, to string, repoPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deps[repoPath] = append(b.deps[repoPath], &secondary.Dependency{From: from, To: to, Type: "blocks"})
	return nil
}

func (b *Backend) RemoveDependency(ctx context.Context, from, to string, repoPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.deps[repoPath][:0]
	for _, d := range b.deps[repoPath] {
		if d.From != from || d.To != to {
			kept = append(kept, d)
		}
	}
	b.deps[repoPath] = kept
	return nil
}

func (b *Backend) ListWorkflows(ctx context.Context, repoPath string) ([]*workflow.Descriptor, error) {
	return []*workflow.Descriptor{workflow.Builtin()}, nil
}

func (b *Backend) BuildTakePrompt(ctx context.Context, id string, repoPath string) (string, error) {
	b.mu.Lock()
	t, ok := b.repos[repoPath][id]
	b.mu.Unlock()
	if !ok {
		return "", secondary.NotFound(id)
	}
	return fmt.Sprintf("Take task %s: %s\nMove it to its active state, do the work, and report back.\n", t.ID, t.Title), nil
}

func (b *Backend) BuildPollPrompt(ctx context.Context, repoPath string) (string, error) {
	return "List the ready tasks and claim the highest-priority one.\n", nil
}

// Ensure Backend implements the backend port.
var _ secondary.Backend = (*Backend)(nil)
