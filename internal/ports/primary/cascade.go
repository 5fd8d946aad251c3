package primary

import "context"

// CascadeService is the primary port for closing a task hierarchy
// leaf-first.
type CascadeService interface {
	// GetOpenDescendants returns the ids of all open descendants of
	// the task in closing order (leaves before parents), without
	// performing any writes. Used as a preview/confirmation step.
	GetOpenDescendants(ctx context.Context, taskID, repoPath string) ([]string, error)

	// CascadeClose closes every open descendant leaf-first, then the
	// root. Per-node failures are recorded and do not halt the rest
	// of the cascade; the root is always attempted last.
	CascadeClose(ctx context.Context, req CascadeCloseRequest) (*CascadeCloseResponse, error)
}

// CascadeCloseRequest contains parameters for a cascade close.
type CascadeCloseRequest struct {
	TaskID   string
	Reason   string
	RepoPath string
}

// CascadeCloseResponse reports what a cascade close did. A cascade
// with partial failures still succeeds overall: Closed lists what was
// closed and Errors names the nodes that failed, so the caller can
// retry just those.
type CascadeCloseResponse struct {
	Closed []string
	Errors []string
}
