// Package primary defines the driving ports of the loom application:
// the service interfaces the CLI (and any future API layer) consumes,
// plus their request/response types.
package primary

import "context"

// TaskService is the primary port for plain task operations routed to
// whichever tracker backend owns the repository.
type TaskService interface {
	// ListTasks lists tasks with optional filters.
	ListTasks(ctx context.Context, req ListTasksRequest) ([]*Task, error)

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, taskID, repoPath string) (*Task, error)

	// CreateTask creates a new task.
	CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error)

	// CloseTask closes a single task.
	CloseTask(ctx context.Context, taskID, reason, repoPath string) error

	// RollbackActive moves an active-phase task back to its queued
	// counterpart without losing the step identity. Tasks not in an
	// active phase are left unchanged.
	RollbackActive(ctx context.Context, taskID, repoPath string) (*Task, error)
}

// ListTasksRequest contains filter options for listing tasks.
type ListTasksRequest struct {
	State    string
	Type     string
	Parent   string
	RepoPath string
}

// CreateTaskRequest contains parameters for creating a task.
type CreateTaskRequest struct {
	Title       string
	Description string
	Type        string
	Priority    int
	Parent      string
	RepoPath    string
}

// Task is the task entity at the port boundary. Labels holds only
// user-facing tags; internal bookkeeping namespaces (stage:,
// transition:, attempt:, commit:, workflow:, wave:) are stripped.
type Task struct {
	ID                  string
	Title               string
	Description         string
	Notes               string
	Acceptance          string
	State               string
	Priority            int
	Type                string
	Labels              []string
	Parent              string
	Created             string
	Updated             string
	IsAgentClaimable    bool
	RequiresHumanAction bool
	NextActionOwner     string
}
