package localdb

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/loom/internal/ctxutil"
	"github.com/example/loom/internal/ports/secondary"
)

// setupBackend creates a backend over a single in-memory database.
// Uses GetSchemaSQL so tests never drift from the real schema.
func setupBackend(t *testing.T) *Backend {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// One connection: every query must see the same in-memory database.
	testDB.SetMaxOpenConns(1)
	if _, err := testDB.Exec(GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })

	return New(WithOpener(func(string) (*sql.DB, error) { return testDB, nil }))
}

func createTask(t *testing.T, b *Backend, rec *secondary.TaskRecord) *secondary.TaskRecord {
	t.Helper()
	created, err := b.Create(context.Background(), rec, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return created
}

func TestCreateAndGet(t *testing.T) {
	b := setupBackend(t)

	created := createTask(t, b, &secondary.TaskRecord{
		Title:      "wire the local tracker",
		State:      "ready_for_planning",
		Type:       "feature",
		Priority:   1,
		Acceptance: "round-trips through sqlite",
		Labels:     []string{"backend", "stage:verification"},
	})
	if created.ID == "" {
		t.Fatal("created task has no id")
	}

	got, err := b.Get(context.Background(), created.ID, "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "wire the local tracker" || got.State != "ready_for_planning" {
		t.Errorf("got = %+v", got)
	}
	if got.Priority != 1 || got.Type != "feature" {
		t.Errorf("got = %+v", got)
	}
	// Labels come back sorted.
	if !reflect.DeepEqual(got.Labels, []string{"backend", "stage:verification"}) {
		t.Errorf("Labels = %v", got.Labels)
	}
	if got.Created.IsZero() || got.Updated.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetNotFound(t *testing.T) {
	b := setupBackend(t)
	_, err := b.Get(context.Background(), "LOOM-missing", "")
	if !secondary.IsNotFound(err) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestListFilters(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	parent := createTask(t, b, &secondary.TaskRecord{Title: "epic", State: "ready_for_planning", Type: "epic"})
	createTask(t, b, &secondary.TaskRecord{Title: "one", State: "ready_for_planning", Type: "feature", Parent: parent.ID})
	createTask(t, b, &secondary.TaskRecord{Title: "two", State: "implementation", Type: "bug", Parent: parent.ID, Labels: []string{"urgent"}})

	tests := []struct {
		name    string
		filters secondary.TaskFilters
		want    int
	}{
		{"no filter", secondary.TaskFilters{}, 3},
		{"by state", secondary.TaskFilters{State: "ready_for_planning"}, 2},
		{"by type", secondary.TaskFilters{Type: "bug"}, 1},
		{"by parent", secondary.TaskFilters{Parent: parent.ID}, 2},
		{"by label", secondary.TaskFilters{Label: "urgent"}, 1},
		{"combined", secondary.TaskFilters{State: "implementation", Parent: parent.ID}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.List(ctx, tt.filters, "")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d tasks, want %d", len(got), tt.want)
			}
		})
	}
}

func TestListReadyExcludesBlocked(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	blocker := createTask(t, b, &secondary.TaskRecord{Title: "blocker", State: "implementation"})
	blocked := createTask(t, b, &secondary.TaskRecord{Title: "blocked", State: "ready_for_planning"})
	free := createTask(t, b, &secondary.TaskRecord{Title: "free", State: "ready_for_review"})
	createTask(t, b, &secondary.TaskRecord{Title: "active", State: "planning"})

	if err := b.AddDependency(ctx, blocked.ID, blocker.ID, ""); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}

	ready, err := b.ListReady(ctx, "")
	if err != nil {
		t.Fatalf("ListReady() error = %v", err)
	}
	if len(ready) != 1 || ready[0].ID != free.ID {
		t.Fatalf("ready = %v, want only the unblocked queued task", ids(ready))
	}

	// Closing the blocker frees the blocked task.
	if err := b.Close(ctx, blocker.ID, "done", ""); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	ready, err = b.ListReady(ctx, "")
	if err != nil {
		t.Fatalf("ListReady() error = %v", err)
	}
	if len(ready) != 2 {
		t.Errorf("ready = %v, want both queued tasks", ids(ready))
	}
}

func ids(records []*secondary.TaskRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestUpdateFields(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	task := createTask(t, b, &secondary.TaskRecord{Title: "before", State: "ready_for_planning", Labels: []string{"old"}})

	title := "after"
	state := "planning"
	labels := []string{"new-a", "new-b"}
	err := b.Update(ctx, task.ID, secondary.UpdateFields{Title: &title, State: &state, Labels: &labels}, "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := b.Get(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "after" || got.State != "planning" {
		t.Errorf("got = %+v", got)
	}
	if !reflect.DeepEqual(got.Labels, []string{"new-a", "new-b"}) {
		t.Errorf("Labels = %v, want replaced set", got.Labels)
	}
}

func TestUpdateNotFound(t *testing.T) {
	b := setupBackend(t)
	title := "x"
	err := b.Update(context.Background(), "LOOM-missing", secondary.UpdateFields{Title: &title}, "")
	if !secondary.IsNotFound(err) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}

	labels := []string{"a"}
	err = b.Update(context.Background(), "LOOM-missing", secondary.UpdateFields{Labels: &labels}, "")
	if !secondary.IsNotFound(err) {
		t.Fatalf("label-only update error = %v, want NOT_FOUND", err)
	}
}

func TestCloseSetsTerminalState(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	task := createTask(t, b, &secondary.TaskRecord{Title: "closable", State: "review"})
	if err := b.Close(ctx, task.ID, "superseded", ""); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := b.Get(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != "shipped" {
		t.Errorf("state = %q, want shipped", got.State)
	}
	if got.Notes == "" {
		t.Error("close reason not recorded in notes")
	}
}

func TestDeleteRemovesLabels(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	task := createTask(t, b, &secondary.TaskRecord{Title: "gone", State: "ready_for_planning", Labels: []string{"a"}})
	if err := b.Delete(ctx, task.ID, ""); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := b.Get(ctx, task.ID, ""); !secondary.IsNotFound(err) {
		t.Fatalf("Get() after delete error = %v, want NOT_FOUND", err)
	}
	if err := b.Delete(ctx, task.ID, ""); !secondary.IsNotFound(err) {
		t.Fatalf("second Delete() error = %v, want NOT_FOUND", err)
	}
}

func TestDependenciesRoundTrip(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	a := createTask(t, b, &secondary.TaskRecord{Title: "a", State: "ready_for_planning"})
	c := createTask(t, b, &secondary.TaskRecord{Title: "c", State: "ready_for_planning"})

	if err := b.AddDependency(ctx, a.ID, c.ID, ""); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	deps, err := b.ListDependencies(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("ListDependencies() error = %v", err)
	}
	if len(deps) != 1 || deps[0].From != a.ID || deps[0].To != c.ID {
		t.Fatalf("deps = %+v", deps)
	}

	if err := b.RemoveDependency(ctx, a.ID, c.ID, ""); err != nil {
		t.Fatalf("RemoveDependency() error = %v", err)
	}
	deps, err = b.ListDependencies(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("ListDependencies() error = %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("deps = %+v, want none", deps)
	}
}

func TestQueryUnavailable(t *testing.T) {
	b := setupBackend(t)
	_, err := b.Query(context.Background(), "state=open", "")
	if secondary.AsBackendError(err).Code != secondary.CodeUnavailable {
		t.Fatalf("error = %v, want UNAVAILABLE", err)
	}
}

func TestAuditLogWrites(t *testing.T) {
	b := setupBackend(t)
	ctx := ctxutil.WithActorID(context.Background(), "agent-7")
	audit := NewAuditLog(b, "")

	if err := audit.LogClose(ctx, "LOOM-1", "done"); err != nil {
		t.Fatalf("LogClose() error = %v", err)
	}
	if err := audit.LogTransition(ctx, "LOOM-1", "verification_enter", "add=[...]"); err != nil {
		t.Fatalf("LogTransition() error = %v", err)
	}
	if err := audit.LogError(ctx, "LOOM-1", "cascade_close", "boom"); err != nil {
		t.Fatalf("LogError() error = %v", err)
	}

	db, err := b.db("")
	if err != nil {
		t.Fatalf("db() error = %v", err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE task_id = 'LOOM-1' AND actor = 'agent-7'").Scan(&n); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if n != 3 {
		t.Errorf("audit rows = %d, want 3", n)
	}
}

func TestBuildTakePromptIncludesFields(t *testing.T) {
	b := setupBackend(t)
	task := createTask(t, b, &secondary.TaskRecord{
		Title:      "add retries",
		State:      "ready_for_implementation",
		Acceptance: "transient failures resubmitted",
	})

	prompt, err := b.BuildTakePrompt(context.Background(), task.ID, "")
	if err != nil {
		t.Fatalf("BuildTakePrompt() error = %v", err)
	}
	for _, want := range []string{task.ID, "add retries", "transient failures resubmitted"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
