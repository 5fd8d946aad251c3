// Package knotcli adapts the knot issue tracker CLI to the backend
// port. Every operation shells out to the knot binary with --json and
// decodes its output; transient failures are retried with exponential
// backoff.
package knotcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/secondary"
)

// Runner executes the knot binary in a repository and returns its
// stdout. Tests inject a fake; production uses execRunner.
type Runner func(ctx context.Context, repoPath string, args ...string) ([]byte, error)

// Backend implements secondary.Backend against the knot CLI.
type Backend struct {
	run        Runner
	maxRetries uint64
}

// Option configures a Backend.
type Option func(*Backend)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(b *Backend) { b.run = r }
}

// WithMaxRetries caps retry attempts for retryable failures.
func WithMaxRetries(n uint64) Option {
	return func(b *Backend) { b.maxRetries = n }
}

// New creates a knot-CLI backend.
func New(opts ...Option) *Backend {
	b := &Backend{run: execRunner, maxRetries: 3}
	for _, o := range opts {
		o(b)
	}
	return b
}

// execRunner invokes the knot binary with the repository as working
// directory and captures stderr for error classification.
func execRunner(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "knot", args...)
	if repoPath != "" {
		cmd.Dir = repoPath
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// output runs a knot command, retrying retryable failures.
func (b *Backend) output(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	var out []byte
	op := func() error {
		raw, err := b.run(ctx, repoPath, args...)
		if err != nil {
			berr := classifyError(err)
			if berr.Retryable {
				return berr
			}
			return backoff.Permanent(berr)
		}
		out = raw
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(100*time.Millisecond),
			backoff.WithMaxElapsedTime(10*time.Second),
		), b.maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) Name() string { return "knot" }

func (b *Backend) Capabilities() secondary.Capabilities {
	return secondary.Capabilities{
		CanCreate:       true,
		CanUpdate:       true,
		CanDelete:       true,
		CanSearch:       true,
		CanQuery:        true,
		CanDependencies: true,
		CanWorkflows:    false,
		CanPrompts:      true,
	}
}

func (b *Backend) List(ctx context.Context, filters secondary.TaskFilters, repoPath string) ([]*secondary.TaskRecord, error) {
	args := []string{"list", "--json"}
	if filters.State != "" {
		args = append(args, "--status", filters.State)
	}
	if filters.Type != "" {
		args = append(args, "--type", filters.Type)
	}
	if filters.Parent != "" {
		args = append(args, "--parent", filters.Parent)
	}
	if filters.Label != "" {
		args = append(args, "--label", filters.Label)
	}
	out, err := b.output(ctx, repoPath, args...)
	if err != nil {
		return nil, err
	}
	return decodeTaskList(out)
}

func (b *Backend) ListReady(ctx context.Context, repoPath string) ([]*secondary.TaskRecord, error) {
	out, err := b.output(ctx, repoPath, "ready", "--json")
	if err != nil {
		return nil, err
	}
	return decodeTaskList(out)
}

func (b *Backend) Search(ctx context.Context, text string, repoPath string) ([]*secondary.TaskRecord, error) {
	out, err := b.output(ctx, repoPath, "search", text, "--json")
	if err != nil {
		return nil, err
	}
	return decodeTaskList(out)
}

func (b *Backend) Query(ctx context.Context, expr string, repoPath string) ([]*secondary.TaskRecord, error) {
	out, err := b.output(ctx, repoPath, "query", expr, "--json")
	if err != nil {
		return nil, err
	}
	return decodeTaskList(out)
}

func (b *Backend) Get(ctx context.Context, id string, repoPath string) (*secondary.TaskRecord, error) {
	out, err := b.output(ctx, repoPath, "show", id, "--json")
	if err != nil {
		return nil, err
	}
	return decodeTask(out)
}

func (b *Backend) Create(ctx context.Context, task *secondary.TaskRecord, repoPath string) (*secondary.TaskRecord, error) {
	args := []string{"create", task.Title, "--json"}
	if task.Description != "" {
		args = append(args, "--description", task.Description)
	}
	if task.Acceptance != "" {
		args = append(args, "--acceptance", task.Acceptance)
	}
	if task.Type != "" {
		args = append(args, "--type", task.Type)
	}
	if task.State != "" {
		args = append(args, "--status", task.State)
	}
	if task.Parent != "" {
		args = append(args, "--parent", task.Parent)
	}
	args = append(args, "--priority", strconv.Itoa(task.Priority))
	for _, l := range task.Labels {
		args = append(args, "--label", l)
	}
	out, err := b.output(ctx, repoPath, args...)
	if err != nil {
		return nil, err
	}
	return decodeTask(out)
}

func (b *Backend) Update(ctx context.Context, id string, fields secondary.UpdateFields, repoPath string) error {
	args := []string{"update", id}
	if fields.Title != nil {
		args = append(args, "--title", *fields.Title)
	}
	if fields.Description != nil {
		args = append(args, "--description", *fields.Description)
	}
	if fields.Notes != nil {
		args = append(args, "--notes", *fields.Notes)
	}
	if fields.Acceptance != nil {
		args = append(args, "--acceptance", *fields.Acceptance)
	}
	if fields.State != nil {
		args = append(args, "--status", *fields.State)
	}
	if fields.Priority != nil {
		args = append(args, "--priority", strconv.Itoa(*fields.Priority))
	}
	if fields.Type != nil {
		args = append(args, "--type", *fields.Type)
	}
	if fields.Parent != nil {
		args = append(args, "--parent", *fields.Parent)
	}
	if fields.Labels != nil {
		// knot replaces the whole label set when --set-labels is given.
		args = append(args, "--set-labels", joinLabels(*fields.Labels))
	}
	if len(args) == 2 {
		return nil // nothing to update
	}
	_, err := b.output(ctx, repoPath, args...)
	return err
}

func (b *Backend) Delete(ctx context.Context, id string, repoPath string) error {
	_, err := b.output(ctx, repoPath, "delete", id, "--force")
	return err
}

func (b *Backend) Close(ctx context.Context, id string, reason string, repoPath string) error {
	args := []string{"close", id}
	if reason != "" {
		args = append(args, "--reason", reason)
	}
	_, err := b.output(ctx, repoPath, args...)
	return err
}

func (b *Backend) ListDependencies(ctx context.Context, id string, repoPath string) ([]*secondary.Dependency, error) {
	out, err := b.output(ctx, repoPath, "dep", "list", id, "--json")
	if err != nil {
		return nil, err
	}
	return decodeDependencyList(out)
}

func (b *Backend) AddDependency(ctx context.Context, from, to string, repoPath string) error {
	_, err := b.output(ctx, repoPath, "dep", "add", from, to)
	return err
}

func (b *Backend) RemoveDependency(ctx context.Context, from, to string, repoPath string) error {
	_, err := b.output(ctx, repoPath, "dep", "remove", from, to)
	return err
}

// ListWorkflows is not supported: knot has no workflow descriptors of
// its own, so callers fall back to the locally configured ones.
func (b *Backend) ListWorkflows(ctx context.Context, repoPath string) ([]*workflow.Descriptor, error) {
	return nil, secondary.Unavailable("workflows", b.Name())
}

func (b *Backend) BuildTakePrompt(ctx context.Context, id string, repoPath string) (string, error) {
	task, err := b.Get(ctx, id, repoPath)
	if err != nil {
		return "", err
	}
	return buildTakePrompt(task), nil
}

func (b *Backend) BuildPollPrompt(ctx context.Context, repoPath string) (string, error) {
	return "Run `knot ready --json`, pick the highest-priority task, and claim it by moving it to its active state.\n", nil
}

// Ensure Backend implements the backend port.
var _ secondary.Backend = (*Backend)(nil)
