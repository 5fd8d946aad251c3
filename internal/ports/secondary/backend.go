// Package secondary defines the driven ports of the loom application:
// the tracker backend contract and supporting record types. Concrete
// adapters live in internal/adapters/*.
package secondary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/loom/internal/core/workflow"
)

// ErrorCode classifies backend failures into a small closed taxonomy.
type ErrorCode string

const (
	// CodeNotFound means the entity does not exist in the tracker.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeUnavailable means the operation is not supported by this
	// backend or capability set.
	CodeUnavailable ErrorCode = "UNAVAILABLE"
	// CodeInternal is an unclassified backend failure carrying the
	// original message.
	CodeInternal ErrorCode = "INTERNAL"
)

// BackendError is the structured error every backend returns.
// Retryable is a hint only; the retry policy belongs to the adapter.
type BackendError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound builds a NOT_FOUND error for the given entity id.
func NotFound(id string) *BackendError {
	return &BackendError{Code: CodeNotFound, Message: fmt.Sprintf("task %s not found", id)}
}

// Unavailable builds an UNAVAILABLE error for the named operation.
func Unavailable(op, backend string) *BackendError {
	return &BackendError{Code: CodeUnavailable, Message: fmt.Sprintf("%s is not supported by the %s backend", op, backend)}
}

// Internal wraps an arbitrary failure as an INTERNAL backend error.
func Internal(err error, retryable bool) *BackendError {
	return &BackendError{Code: CodeInternal, Message: err.Error(), Retryable: retryable}
}

// AsBackendError extracts a *BackendError from an error chain.
// Errors that are not backend errors are reported as INTERNAL.
func AsBackendError(err error) *BackendError {
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	return &BackendError{Code: CodeInternal, Message: err.Error()}
}

// IsNotFound reports whether err is a NOT_FOUND backend error.
func IsNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Code == CodeNotFound
}

// TaskRecord is a task as stored by a tracker backend.
// State and Labels jointly encode position in two orthogonal state
// machines: the workflow step/phase machine (from State) and the
// verification machine (from stage:/transition:/attempt:/commit: labels).
type TaskRecord struct {
	ID          string
	Title       string
	Description string
	Notes       string
	Acceptance  string
	State       string
	Priority    int // 0 (highest) through 4 (lowest)
	Type        string
	Labels      []string
	Parent      string // empty for roots; cycles possible in malformed data
	Created     time.Time
	Updated     time.Time
}

// TaskFilters narrows List results. Zero values mean "no filter".
type TaskFilters struct {
	State  string
	Type   string
	Parent string
	Label  string
}

// UpdateFields carries a partial task update. Nil fields are untouched.
type UpdateFields struct {
	Title       *string
	Description *string
	Notes       *string
	Acceptance  *string
	State       *string
	Priority    *int
	Type        *string
	Labels      *[]string
	Parent      *string
}

// Dependency is a directed edge between two tasks.
type Dependency struct {
	From string
	To   string
	Type string // e.g. "blocks", "parent-child"
}

// Capabilities is the per-backend feature flag bundle. The router
// exposes it so callers can negotiate before issuing operations.
type Capabilities struct {
	CanCreate       bool
	CanUpdate       bool
	CanDelete       bool
	CanSearch       bool
	CanQuery        bool
	CanDependencies bool
	CanWorkflows    bool
	CanPrompts      bool
}

// Backend is the contract every concrete tracker adapter implements.
// repoPath scopes the operation to one repository; adapters that keep
// per-repository state (marker dirs, databases) resolve it themselves.
// All failures are *BackendError values.
type Backend interface {
	// Name returns the lowercase identifier for this backend
	// (e.g. "knot", "local", "memory").
	Name() string

	// Capabilities returns the fixed feature set of this backend.
	Capabilities() Capabilities

	List(ctx context.Context, filters TaskFilters, repoPath string) ([]*TaskRecord, error)

	// ListReady returns tasks in a queued state with no open blockers.
	ListReady(ctx context.Context, repoPath string) ([]*TaskRecord, error)

	// Search performs free-text matching over title and description.
	Search(ctx context.Context, text string, repoPath string) ([]*TaskRecord, error)

	// Query evaluates a backend-specific query expression.
	Query(ctx context.Context, expr string, repoPath string) ([]*TaskRecord, error)

	Get(ctx context.Context, id string, repoPath string) (*TaskRecord, error)

	Create(ctx context.Context, task *TaskRecord, repoPath string) (*TaskRecord, error)

	Update(ctx context.Context, id string, fields UpdateFields, repoPath string) error

	Delete(ctx context.Context, id string, repoPath string) error

	// Close moves a task to its terminal closed state.
	Close(ctx context.Context, id string, reason string, repoPath string) error

	ListDependencies(ctx context.Context, id string, repoPath string) ([]*Dependency, error)
	AddDependency(ctx context.Context, from, to string, repoPath string) error
	RemoveDependency(ctx context.Context, from, to string, repoPath string) error

	// ListWorkflows returns the workflow descriptors this tracker knows.
	ListWorkflows(ctx context.Context, repoPath string) ([]*workflow.Descriptor, error)

	// BuildTakePrompt renders the instruction block an agent receives
	// when it claims the task.
	BuildTakePrompt(ctx context.Context, id string, repoPath string) (string, error)

	// BuildPollPrompt renders the instruction block an agent receives
	// when polling for ready work.
	BuildPollPrompt(ctx context.Context, repoPath string) (string, error)
}
