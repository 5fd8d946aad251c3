// Package app implements the primary ports. Services receive the
// backend router and supporting collaborators by injection and carry
// no storage of their own.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/loom/internal/core/verification"
	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/ports/secondary"
)

// TaskServiceImpl implements primary.TaskService over the backend
// router.
type TaskServiceImpl struct {
	backend secondary.Backend
	flows   []*workflow.Descriptor
}

// NewTaskService creates a TaskService with injected dependencies.
func NewTaskService(backend secondary.Backend, flows []*workflow.Descriptor) *TaskServiceImpl {
	return &TaskServiceImpl{backend: backend, flows: flows}
}

// descriptorFor picks the workflow descriptor governing a task. Tasks
// opt into a named workflow with a workflow:<id> label; everything
// else uses the default descriptor.
func descriptorFor(flows []*workflow.Descriptor, rec *secondary.TaskRecord) *workflow.Descriptor {
	for _, l := range rec.Labels {
		if id, ok := strings.CutPrefix(l, "workflow:"); ok {
			if d := workflow.FindDescriptor(flows, id); d != nil {
				return d
			}
		}
	}
	if d := workflow.FindDescriptor(flows, "default"); d != nil {
		return d
	}
	return workflow.Builtin()
}

// isClosed reports whether a task sits in a terminal state of its
// workflow. "deferred" is a hold, not closed.
func isClosed(flows []*workflow.Descriptor, rec *secondary.TaskRecord) bool {
	return workflow.IsTerminal(descriptorFor(flows, rec), rec.State)
}

// recordToTask maps a backend record to the port boundary type,
// stripping internal bookkeeping labels and deriving runtime flags.
func recordToTask(flows []*workflow.Descriptor, rec *secondary.TaskRecord) *primary.Task {
	rs := workflow.DeriveRuntimeState(descriptorFor(flows, rec), rec.State)
	return &primary.Task{
		ID:                  rec.ID,
		Title:               rec.Title,
		Description:         rec.Description,
		Notes:               rec.Notes,
		Acceptance:          rec.Acceptance,
		State:               rec.State,
		Priority:            rec.Priority,
		Type:                rec.Type,
		Labels:              verification.UserLabels(rec.Labels),
		Parent:              rec.Parent,
		Created:             formatTime(rec.Created),
		Updated:             formatTime(rec.Updated),
		IsAgentClaimable:    rs.IsAgentClaimable,
		RequiresHumanAction: rs.RequiresHumanAction,
		NextActionOwner:     string(rs.NextActionOwnerKind),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ListTasks lists tasks with optional filters.
func (s *TaskServiceImpl) ListTasks(ctx context.Context, req primary.ListTasksRequest) ([]*primary.Task, error) {
	records, err := s.backend.List(ctx, secondary.TaskFilters{
		State:  req.State,
		Type:   req.Type,
		Parent: req.Parent,
	}, req.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*primary.Task, len(records))
	for i, r := range records {
		tasks[i] = recordToTask(s.flows, r)
	}
	return tasks, nil
}

// GetTask retrieves a task by ID.
func (s *TaskServiceImpl) GetTask(ctx context.Context, taskID, repoPath string) (*primary.Task, error) {
	record, err := s.backend.Get(ctx, taskID, repoPath)
	if err != nil {
		return nil, err
	}
	return recordToTask(s.flows, record), nil
}

// CreateTask creates a new task in its workflow's first queued state.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, req primary.CreateTaskRequest) (*primary.Task, error) {
	desc := workflow.FindDescriptor(s.flows, "default")
	if desc == nil {
		desc = workflow.Builtin()
	}
	if len(desc.States) == 0 {
		return nil, fmt.Errorf("default workflow has no states")
	}

	record := &secondary.TaskRecord{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Priority:    req.Priority,
		Parent:      req.Parent,
		State:       workflow.QueuedName(desc.States[0]),
	}
	created, err := s.backend.Create(ctx, record, req.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return recordToTask(s.flows, created), nil
}

// CloseTask closes a single task.
func (s *TaskServiceImpl) CloseTask(ctx context.Context, taskID, reason, repoPath string) error {
	if err := s.backend.Close(ctx, taskID, reason, repoPath); err != nil {
		return fmt.Errorf("failed to close task %s: %w", taskID, err)
	}
	return nil
}

// RollbackActive moves an active-phase task back to its queued
// counterpart. Any other state passes through unchanged.
func (s *TaskServiceImpl) RollbackActive(ctx context.Context, taskID, repoPath string) (*primary.Task, error) {
	record, err := s.backend.Get(ctx, taskID, repoPath)
	if err != nil {
		return nil, err
	}

	rolled := workflow.RollbackActivePhase(descriptorFor(s.flows, record), record.State)
	if rolled != record.State {
		if err := s.backend.Update(ctx, taskID, secondary.UpdateFields{State: &rolled}, repoPath); err != nil {
			return nil, fmt.Errorf("failed to roll back task %s: %w", taskID, err)
		}
		record.State = rolled
	}
	return recordToTask(s.flows, record), nil
}

// Ensure TaskServiceImpl implements the interface.
var _ primary.TaskService = (*TaskServiceImpl)(nil)
