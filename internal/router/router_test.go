package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/loom/internal/adapters/memory"
	"github.com/example/loom/internal/ports/secondary"
)

// namedBackend wraps the memory backend under a different name so the
// router can tell resolved backends apart.
type namedBackend struct {
	*memory.Backend
	name string
}

func (n *namedBackend) Name() string { return n.name }

func newNamed(name string) *namedBackend {
	return &namedBackend{Backend: memory.New(), name: name}
}

func repoWithMarker(t *testing.T, marker string) string {
	t.Helper()
	dir := t.TempDir()
	if marker != "" {
		require.NoError(t, os.Mkdir(filepath.Join(dir, marker), 0755))
	}
	return dir
}

func TestDetectBackend(t *testing.T) {
	assert.Equal(t, "knot", DetectBackend(repoWithMarker(t, ".knot")))
	assert.Equal(t, "local", DetectBackend(repoWithMarker(t, ".loom")))
	assert.Equal(t, "", DetectBackend(repoWithMarker(t, "")))

	// A marker file (not a directory) does not count.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".knot"), []byte("x"), 0644))
	assert.Equal(t, "", DetectBackend(dir))
}

func TestRouterResolvesByMarker(t *testing.T) {
	knot := newNamed("knot")
	local := newNamed("local")
	r := New("local", knot, local)

	knotRepo := repoWithMarker(t, ".knot")
	localRepo := repoWithMarker(t, ".loom")

	name, err := r.BackendNameForRepo(knotRepo)
	require.NoError(t, err)
	assert.Equal(t, "knot", name)

	name, err = r.BackendNameForRepo(localRepo)
	require.NoError(t, err)
	assert.Equal(t, "local", name)
}

func TestRouterFallsBack(t *testing.T) {
	local := newNamed("local")
	r := New("local", local)

	// No repo path at all.
	name, err := r.BackendNameForRepo("")
	require.NoError(t, err)
	assert.Equal(t, "local", name)

	// A repo with no markers.
	name, err = r.BackendNameForRepo(repoWithMarker(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "local", name)
}

func TestRouterUnregisteredFallback(t *testing.T) {
	r := New("knot") // fallback names a backend that was never registered

	_, err := r.BackendNameForRepo("")
	require.Error(t, err)
	be := secondary.AsBackendError(err)
	assert.Equal(t, secondary.CodeUnavailable, be.Code)
}

func TestRouterCachesResolution(t *testing.T) {
	knot := newNamed("knot")
	local := newNamed("local")
	r := New("local", knot, local)

	repo := repoWithMarker(t, ".knot")
	name, err := r.BackendNameForRepo(repo)
	require.NoError(t, err)
	require.Equal(t, "knot", name)

	// Removing the marker does not change the cached resolution.
	require.NoError(t, os.Remove(filepath.Join(repo, ".knot")))
	name, err = r.BackendNameForRepo(repo)
	require.NoError(t, err)
	assert.Equal(t, "knot", name, "resolution should come from cache")

	// Clearing one entry forces re-detection.
	r.ClearRepoCache(repo)
	name, err = r.BackendNameForRepo(repo)
	require.NoError(t, err)
	assert.Equal(t, "local", name)
}

func TestRouterClearAll(t *testing.T) {
	knot := newNamed("knot")
	local := newNamed("local")
	r := New("local", knot, local)

	repoA := repoWithMarker(t, ".knot")
	repoB := repoWithMarker(t, ".knot")
	for _, repo := range []string{repoA, repoB} {
		name, err := r.BackendNameForRepo(repo)
		require.NoError(t, err)
		require.Equal(t, "knot", name)
		require.NoError(t, os.Remove(filepath.Join(repo, ".knot")))
	}

	// Empty path clears every entry.
	r.ClearRepoCache("")
	for _, repo := range []string{repoA, repoB} {
		name, err := r.BackendNameForRepo(repo)
		require.NoError(t, err)
		assert.Equal(t, "local", name)
	}
}

func TestCapabilitiesForRepo(t *testing.T) {
	local := newNamed("local")
	r := New("local", local)

	caps, err := r.CapabilitiesForRepo(repoWithMarker(t, ".loom"))
	require.NoError(t, err)
	assert.True(t, caps.CanCreate)
	assert.False(t, caps.CanQuery)
}

func TestRouterDelegates(t *testing.T) {
	ctx := context.Background()
	local := newNamed("local")
	r := New("local", local)
	repo := repoWithMarker(t, ".loom")

	created, err := r.Create(ctx, &secondary.TaskRecord{Title: "wire the router", State: "ready_for_planning"}, repo)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := r.Get(ctx, created.ID, repo)
	require.NoError(t, err)
	assert.Equal(t, "wire the router", got.Title)

	ready, err := r.ListReady(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, ready, 1)

	// Structured errors propagate unchanged.
	_, err = r.Get(ctx, "TASK-404", repo)
	require.Error(t, err)
	assert.True(t, secondary.IsNotFound(err))

	_, err = r.Query(ctx, "state=open", repo)
	require.Error(t, err)
	assert.Equal(t, secondary.CodeUnavailable, secondary.AsBackendError(err).Code)
}

func TestWatcherInvalidatesOnMarkerChange(t *testing.T) {
	knot := newNamed("knot")
	local := newNamed("local")
	r := New("local", knot, local)

	repo := repoWithMarker(t, ".knot")
	name, err := r.BackendNameForRepo(repo)
	require.NoError(t, err)
	require.Equal(t, "knot", name)

	w, err := NewWatcher(r)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.WatchRepo(repo))

	require.NoError(t, os.Remove(filepath.Join(repo, ".knot")))

	assert.Eventually(t, func() bool {
		got, err := r.BackendNameForRepo(repo)
		return err == nil && got == "local"
	}, 3*time.Second, 20*time.Millisecond, "marker removal should re-detect the backend")
}
