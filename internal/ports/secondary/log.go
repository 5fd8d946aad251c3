package secondary

import "context"

// AuditLog defines the interface for recording lifecycle actions.
// Implementations decide where entries land (the local tracker database
// keeps an audit_log table); callers treat failures as advisory.
type AuditLog interface {
	// LogClose records that a task was closed, with the reason given.
	LogClose(ctx context.Context, taskID, reason string) error

	// LogTransition records a state or label transition on a task.
	LogTransition(ctx context.Context, taskID, action, detail string) error

	// LogError records a failed operation against a task.
	LogError(ctx context.Context, taskID, action, message string) error
}
