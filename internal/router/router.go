// Package router resolves which concrete tracker backend serves a
// repository, caches the resolution per repository path, and forwards
// every backend call to the resolved backend unchanged.
package router

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/secondary"
)

// Router implements secondary.Backend by delegation. Detection runs at
// most once per repository path; concurrent first lookups for the same
// path are collapsed with singleflight.
type Router struct {
	mu       sync.RWMutex
	cache    map[string]secondary.Backend // repoPath -> resolved backend
	backends map[string]secondary.Backend // name -> backend
	fallback string
	group    singleflight.Group
}

// New creates a router over the given backends. fallback names the
// backend used when no repository path is supplied or no marker is
// found.
func New(fallback string, backends ...secondary.Backend) *Router {
	r := &Router{
		cache:    make(map[string]secondary.Backend),
		backends: make(map[string]secondary.Backend, len(backends)),
		fallback: fallback,
	}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// resolve returns the backend serving repoPath, detecting and caching
// on first use. An empty repoPath resolves to the fallback backend.
func (r *Router) resolve(repoPath string) (secondary.Backend, error) {
	if repoPath == "" {
		return r.named(r.fallback)
	}

	r.mu.RLock()
	b, ok := r.cache[repoPath]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	v, err, _ := r.group.Do(repoPath, func() (any, error) {
		name := DetectBackend(repoPath)
		if name == "" {
			name = r.fallback
		}
		b, err := r.named(name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[repoPath] = b
		r.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(secondary.Backend), nil
}

func (r *Router) named(name string) (secondary.Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, &secondary.BackendError{
			Code:    secondary.CodeUnavailable,
			Message: fmt.Sprintf("no %q backend registered", name),
		}
	}
	return b, nil
}

// BackendNameForRepo returns the name of the backend serving repoPath.
func (r *Router) BackendNameForRepo(repoPath string) (string, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return "", err
	}
	return b.Name(), nil
}

// CapabilitiesForRepo performs the detection-or-cache-lookup and
// returns the backend's capability set without touching the tracker.
func (r *Router) CapabilitiesForRepo(repoPath string) (secondary.Capabilities, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return secondary.Capabilities{}, err
	}
	return b.Capabilities(), nil
}

// ClearRepoCache invalidates the cached resolution for one repository
// path, or every entry when repoPath is empty.
func (r *Router) ClearRepoCache(repoPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if repoPath == "" {
		r.cache = make(map[string]secondary.Backend)
		return
	}
	delete(r.cache, repoPath)
}

// Name identifies the router itself at the Backend interface.
func (r *Router) Name() string { return "router" }

// Capabilities returns the fallback backend's capability set; use
// CapabilitiesForRepo for repo-scoped negotiation.
func (r *Router) Capabilities() secondary.Capabilities {
	b, err := r.named(r.fallback)
	if err != nil {
		return secondary.Capabilities{}
	}
	return b.Capabilities()
}

// The remaining methods resolve the backend for the repo path and
// delegate unchanged; backend errors propagate as-is and the router
// never retries.

func (r *Router) List(ctx context.Context, filters secondary.TaskFilters, repoPath string) ([]*secondary.TaskRecord, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.List(ctx, filters, repoPath)
}

func (r *Router) ListReady(ctx context.Context, repoPath string) ([]*secondary.TaskRecord, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.ListReady(ctx, repoPath)
}

func (r *Router) Search(ctx context.Context, text string, repoPath string) ([]*secondary.TaskRecord, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, text, repoPath)
}

func (r *Router) Query(ctx context.Context, expr string, repoPath string) ([]*secondary.TaskRecord, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.Query(ctx, expr, repoPath)
}

func (r *Router) Get(ctx context.Context, id string, repoPath string) (*secondary.TaskRecord, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, id, repoPath)
}

func (r *Router) Create(ctx context.Context, task *secondary.TaskRecord, repoPath string) (*secondary.TaskRecord, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.Create(ctx, task, repoPath)
}

func (r *Router) Update(ctx context.Context, id string, fields secondary.UpdateFields, repoPath string) error {
	b, err := r.resolve(repoPath)
	if err != nil {
		return err
	}
	return b.Update(ctx, id, fields, repoPath)
}

func (r *Router) Delete(ctx context.Context, id string, repoPath string) error {
	b, err := r.resolve(repoPath)
	if err != nil {
		return err
	}
	return b.Delete(ctx, id, repoPath)
}

func (r *Router) Close(ctx context.Context, id string, reason string, repoPath string) error {
	b, err := r.resolve(repoPath)
	if err != nil {
		return err
	}
	return b.Close(ctx, id, reason, repoPath)
}

func (r *Router) ListDependencies(ctx context.Context, id string, repoPath string) ([]*secondary.Dependency, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.ListDependencies(ctx, id, repoPath)
}

func (r *Router) AddDependency(ctx context.Context, from, to string, repoPath string) error {
	b, err := r.resolve(repoPath)
	if err != nil {
		return err
	}
	return b.AddDependency(ctx, from, to, repoPath)
}

func (r *Router) RemoveDependency(ctx context.Context, from, to string, repoPath string) error {
	b, err := r.resolve(repoPath)
	if err != nil {
		return err
	}
	return b.RemoveDependency(ctx, from, to, repoPath)
}

func (r *Router) ListWorkflows(ctx context.Context, repoPath string) ([]*workflow.Descriptor, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return b.ListWorkflows(ctx, repoPath)
}

func (r *Router) BuildTakePrompt(ctx context.Context, id string, repoPath string) (string, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return "", err
	}
	return b.BuildTakePrompt(ctx, id, repoPath)
}

func (r *Router) BuildPollPrompt(ctx context.Context, repoPath string) (string, error) {
	b, err := r.resolve(repoPath)
	if err != nil {
		return "", err
	}
	return b.BuildPollPrompt(ctx, repoPath)
}

// Ensure Router implements the backend port.
var _ secondary.Backend = (*Router)(nil)
