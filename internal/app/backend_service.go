package app

import (
	"context"

	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/ports/secondary"
)

// RepoResolver is the slice of the router the backend info service
// needs: per-repo resolution and cache control.
type RepoResolver interface {
	BackendNameForRepo(repoPath string) (string, error)
	CapabilitiesForRepo(repoPath string) (secondary.Capabilities, error)
	ClearRepoCache(repoPath string)
}

// BackendInfoServiceImpl implements primary.BackendInfoService over the
// backend router.
type BackendInfoServiceImpl struct {
	resolver RepoResolver
}

// NewBackendInfoService creates a BackendInfoService with injected
// dependencies.
func NewBackendInfoService(resolver RepoResolver) *BackendInfoServiceImpl {
	return &BackendInfoServiceImpl{resolver: resolver}
}

// Describe resolves the backend serving a repository and reports its
// capability set. No tracker operation runs.
func (s *BackendInfoServiceImpl) Describe(ctx context.Context, repoPath string) (*primary.BackendInfo, error) {
	name, err := s.resolver.BackendNameForRepo(repoPath)
	if err != nil {
		return nil, err
	}
	caps, err := s.resolver.CapabilitiesForRepo(repoPath)
	if err != nil {
		return nil, err
	}
	return &primary.BackendInfo{
		Name:     name,
		RepoPath: repoPath,
		Capabilities: map[string]bool{
			"create":       caps.CanCreate,
			"update":       caps.CanUpdate,
			"delete":       caps.CanDelete,
			"search":       caps.CanSearch,
			"query":        caps.CanQuery,
			"dependencies": caps.CanDependencies,
			"workflows":    caps.CanWorkflows,
			"prompts":      caps.CanPrompts,
		},
	}, nil
}

// ClearCache invalidates the routing cache for one repository path, or
// all entries when repoPath is empty.
func (s *BackendInfoServiceImpl) ClearCache(repoPath string) {
	s.resolver.ClearRepoCache(repoPath)
}

// Ensure BackendInfoServiceImpl implements the interface.
var _ primary.BackendInfoService = (*BackendInfoServiceImpl)(nil)
