package primary

import "context"

// BackendInfoService is the primary port for backend capability
// inspection and routing-cache control.
type BackendInfoService interface {
	// Describe reports which backend serves the repository and what it
	// can do, without performing any tracker operation.
	Describe(ctx context.Context, repoPath string) (*BackendInfo, error)

	// ClearCache invalidates the routing cache for one repository
	// path, or all entries when repoPath is empty.
	ClearCache(repoPath string)
}

// BackendInfo describes a resolved backend.
type BackendInfo struct {
	Name         string
	RepoPath     string
	Capabilities map[string]bool
}
