// Package localdb implements the backend port against a SQLite
// database stored inside the repository's .loom directory. It is the
// fallback tracker when no external one is detected.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/secondary"
)

// Opener produces a ready-to-use database handle for a repository.
// Tests inject an in-memory opener; production opens .loom/loom.db.
type Opener func(repoPath string) (*sql.DB, error)

// Backend implements secondary.Backend over SQLite, one database per
// repository path.
type Backend struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
	open  Opener

	// closedStates are the state names Close may assign and ListReady
	// treats as no-longer-blocking. The first entry is what Close sets.
	closedStates []string
}

// Option configures a Backend.
type Option func(*Backend)

// WithOpener replaces the database opener.
func WithOpener(o Opener) Option {
	return func(b *Backend) { b.open = o }
}

// WithClosedStates overrides the terminal state vocabulary.
func WithClosedStates(states ...string) Option {
	return func(b *Backend) { b.closedStates = states }
}

// New creates a local SQLite backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		pools:        make(map[string]*sql.DB),
		open:         openRepoDB,
		closedStates: []string{"shipped", "abandoned"},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// loomDir returns the repository's .loom directory, or the user-level
// one when no repository path is given.
func loomDir(repoPath string) (string, error) {
	if repoPath != "" {
		return filepath.Join(repoPath, ".loom"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".loom"), nil
}

// openRepoDB opens (creating if needed) the repository's tracker
// database and applies the schema.
func openRepoDB(repoPath string) (*sql.DB, error) {
	dir, err := loomDir(repoPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "loom.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// db returns the pooled handle for a repository, opening on first use.
func (b *Backend) db(repoPath string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := b.pools[repoPath]; ok {
		return db, nil
	}
	db, err := b.open(repoPath)
	if err != nil {
		return nil, secondary.Internal(err, false)
	}
	b.pools[repoPath] = db
	return db, nil
}

// CloseAll closes every pooled database handle.
func (b *Backend) CloseAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for path, db := range b.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.pools, path)
	}
	return firstErr
}

func (b *Backend) Name() string { return "local" }

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

const taskColumns = "id, title, description, notes, acceptance, state, priority, task_type, parent_id, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (*secondary.TaskRecord, error) {
	rec := &secondary.TaskRecord{}
	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Notes, &rec.Acceptance,
		&rec.State, &rec.Priority, &rec.Type, &rec.Parent, &rec.Created, &rec.Updated)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// loadLabels attaches labels to each record in one query.
func loadLabels(ctx context.Context, db *sql.DB, records []*secondary.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}
	byID := make(map[string]*secondary.TaskRecord, len(records))
	ids := make([]any, len(records))
	placeholders := make([]string, len(records))
	for i, r := range records {
		byID[r.ID] = r
		ids[i] = r.ID
		placeholders[i] = "?"
	}

	rows, err := db.QueryContext(ctx,
		"SELECT task_id, label FROM task_labels WHERE task_id IN ("+strings.Join(placeholders, ",")+") ORDER BY label",
		ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return err
		}
		if r, ok := byID[id]; ok {
			r.Labels = append(r.Labels, label)
		}
	}
	return rows.Err()
}

func (b *Backend) queryTasks(ctx context.Context, repoPath, where string, args ...any) ([]*secondary.TaskRecord, error) {
	db, err := b.db(repoPath)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + taskColumns + " FROM tasks"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY created_at, id"

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, secondary.Internal(fmt.Errorf("failed to query tasks: %w", err), false)
	}
	defer rows.Close()

	var out []*secondary.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, secondary.Internal(err, false)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, secondary.Internal(err, false)
	}
	if err := loadLabels(ctx, db, out); err != nil {
		return nil, secondary.Internal(err, false)
	}
	return out, nil
}

func (b *Backend) List(ctx context.Context, filters secondary.TaskFilters, repoPath string) ([]*secondary.TaskRecord, error) {
	var conds []string
	var args []any
	if filters.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, filters.State)
	}
	if filters.Type != "" {
		conds = append(conds, "task_type = ?")
		args = append(args, filters.Type)
	}
	if filters.Parent != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, filters.Parent)
	}
	if filters.Label != "" {
		conds = append(conds, "id IN (SELECT task_id FROM task_labels WHERE label = ?)")
		args = append(args, filters.Label)
	}
	return b.queryTasks(ctx, repoPath, strings.Join(conds, " AND "), args...)
}

// ListReady returns queued tasks whose blockers are all in a closed
// state.
func (b *Backend) ListReady(ctx context.Context, repoPath string) ([]*secondary.TaskRecord, error) {
	closed := make([]string, len(b.closedStates))
	args := []any{workflow.QueuedPrefix + "%"}
	for i, s := range b.closedStates {
		closed[i] = "?"
		args = append(args, s)
	}
	where := fmt.Sprintf(`state LIKE ?
		AND NOT EXISTS (
			SELECT 1 FROM dependencies d
			JOIN tasks blocker ON blocker.id = d.to_id
			WHERE d.from_id = tasks.id AND blocker.state NOT IN (%s)
		)`, strings.Join(closed, ","))
	return b.queryTasks(ctx, repoPath, where, args...)
}

func (b *Backend) Search(ctx context.Context, text string, repoPath string) ([]*secondary.TaskRecord, error) {
	needle := "%" + text + "%"
	return b.queryTasks(ctx, repoPath, "(title LIKE ? OR description LIKE ?)", needle, needle)
}

func (b *Backend) Query(ctx context.Context, expr string, repoPath string) ([]*secondary.TaskRecord, error) {
	return nil, secondary.Unavailable("query", b.Name())
}

func (b *Backend) Get(ctx context.Context, id string, repoPath string) (*secondary.TaskRecord, error) {
	db, err := b.db(repoPath)
	if err != nil {
		return nil, err
	}
	rec, err := scanTask(db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, secondary.NotFound(id)
	}
	if err != nil {
		return nil, secondary.Internal(fmt.Errorf("failed to get task: %w", err), false)
	}
	if err := loadLabels(ctx, db, []*secondary.TaskRecord{rec}); err != nil {
		return nil, secondary.Internal(err, false)
	}
	return rec, nil
}

func (b *Backend) Create(ctx context.Context, task *secondary.TaskRecord, repoPath string) (*secondary.TaskRecord, error) {
	db, err := b.db(repoPath)
	if err != nil {
		return nil, err
	}

	id := task.ID
	if id == "" {
		id = "LOOM-" + uuid.NewString()[:8]
	}
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, secondary.Internal(err, true)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, task.Title, task.Description, task.Notes, task.Acceptance,
		task.State, task.Priority, task.Type, task.Parent, now, now)
	if err != nil {
		return nil, secondary.Internal(fmt.Errorf("failed to create task: %w", err), false)
	}
	for _, l := range task.Labels {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO task_labels (task_id, label) VALUES (?, ?)", id, l); err != nil {
			return nil, secondary.Internal(err, false)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, secondary.Internal(err, true)
	}
	return b.Get(ctx, id, repoPath)
}

func (b *Backend) Update(ctx context.Context, id string, fields secondary.UpdateFields, repoPath string) error {
	db, err := b.db(repoPath)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if fields.Title != nil {
		set("title", *fields.Title)
	}
	if fields.Description != nil {
		set("description", *fields.Description)
	}
	if fields.Notes != nil {
		set("notes", *fields.Notes)
	}
	if fields.Acceptance != nil {
		set("acceptance", *fields.Acceptance)
	}
	if fields.State != nil {
		set("state", *fields.State)
	}
	if fields.Priority != nil {
		set("priority", *fields.Priority)
	}
	if fields.Type != nil {
		set("task_type", *fields.Type)
	}
	if fields.Parent != nil {
		set("parent_id", *fields.Parent)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return secondary.Internal(err, true)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		set("updated_at", time.Now().UTC())
		args = append(args, id)
		res, err := tx.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return secondary.Internal(fmt.Errorf("failed to update task: %w", err), false)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return secondary.NotFound(id)
		}
	} else if fields.Labels != nil {
		// Label-only update still requires the task to exist.
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&exists); err != nil {
			return secondary.Internal(err, false)
		}
		if exists == 0 {
			return secondary.NotFound(id)
		}
	}

	if fields.Labels != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM task_labels WHERE task_id = ?", id); err != nil {
			return secondary.Internal(err, false)
		}
		for _, l := range *fields.Labels {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO task_labels (task_id, label) VALUES (?, ?)", id, l); err != nil {
				return secondary.Internal(err, false)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return secondary.Internal(err, true)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, id string, repoPath string) error {
	db, err := b.db(repoPath)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return secondary.Internal(fmt.Errorf("failed to delete task: %w", err), false)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return secondary.NotFound(id)
	}
	return nil
}

func (b *Backend) Close(ctx context.Context, id string, reason string, repoPath string) error {
	db, err := b.db(repoPath)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE tasks SET state = ?,
			notes = CASE WHEN ? = '' THEN notes ELSE TRIM(notes || char(10) || 'closed: ' || ?) END,
			updated_at = ?
		 WHERE id = ?`,
		b.closedStates[0], reason, reason, time.Now().UTC(), id)
	if err != nil {
		return secondary.Internal(fmt.Errorf("failed to close task: %w", err), false)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return secondary.NotFound(id)
	}
	return nil
}

func (b *Backend) ListDependencies(ctx context.Context, id string, repoPath string) ([]*secondary.Dependency, error) {
	db, err := b.db(repoPath)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT from_id, to_id, dep_type FROM dependencies WHERE from_id = ? OR to_id = ?", id, id)
	if err != nil {
		return nil, secondary.Internal(err, false)
	}
	defer rows.Close()

	var out []*secondary.Dependency
	for rows.Next() {
		d := &secondary.Dependency{}
		if err := rows.Scan(&d.From, &d.To, &d.Type); err != nil {
			return nil, secondary.Internal(err, false)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (b *Backend) AddDependency(ctx context.Context, from, to string, repoPath string) error {
	db, err := b.db(repoPath)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT OR IGNORE INTO dependencies (from_id, to_id, dep_type) VALUES (?, ?, 'blocks')", from, to)
	if err != nil {
		return secondary.Internal(err, false)
	}
	return nil
}

func (b *Backend) RemoveDependency(ctx context.Context, from, to string, repoPath string) error {
	db, err := b.db(repoPath)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM dependencies WHERE from_id = ? AND to_id = ?", from, to)
	if err != nil {
		return secondary.Internal(err, false)
	}
	return nil
}

// ListWorkflows loads descriptors from the repository's workflows.yaml,
// falling back to the builtin default.
func (b *Backend) ListWorkflows(ctx context.Context, repoPath string) ([]*workflow.Descriptor, error) {
	dir, err := loomDir(repoPath)
	if err != nil {
		return nil, secondary.Internal(err, false)
	}
	flows, err := workflow.LoadDescriptors(filepath.Join(dir, "workflows.yaml"))
	if err != nil {
		return nil, secondary.Internal(err, false)
	}
	return flows, nil
}

func (b *Backend) BuildTakePrompt(ctx context.Context, id string, repoPath string) (string, error) {
	task, err := b.Get(ctx, id, repoPath)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Take task %s: %s\n\n", task.ID, task.Title)
	if task.Description != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n\n", task.Description)
	}
	if task.Acceptance != "" {
		fmt.Fprintf(&sb, "Acceptance criteria:\n%s\n\n", task.Acceptance)
	}
	sb.WriteString("Move the task to its active state, do the work, and record progress in the notes.\n")
	return sb.String(), nil
}

func (b *Backend) BuildPollPrompt(ctx context.Context, repoPath string) (string, error) {
	return "List the ready tasks and claim the highest-priority one by moving it to its active state.\n", nil
}

// Ensure Backend implements the backend port.
var _ secondary.Backend = (*Backend)(nil)
