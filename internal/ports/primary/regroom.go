package primary

import "context"

// RegroomService is the primary port for bottom-up auto-close
// propagation: once every child of an ancestor is closed, the ancestor
// closes too, cascading upward until an ancestor with open work halts
// the walk.
type RegroomService interface {
	// RegroomAncestors walks upward from a task that just changed and
	// auto-closes ancestors whose children are now all closed. It is
	// best-effort: internal failures are logged, never returned, and
	// the result lists the ancestors that were closed.
	RegroomAncestors(ctx context.Context, taskID, repoPath string) []string
}
