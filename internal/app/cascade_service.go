package app

import (
	"context"
	"fmt"

	"github.com/example/loom/internal/core/tree"
	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/ports/secondary"
)

// CascadeServiceImpl implements primary.CascadeService: closing a task
// hierarchy leaf-first so no node is ever closed while the tracker
// still shows open children under it.
type CascadeServiceImpl struct {
	backend secondary.Backend
	audit   secondary.AuditLog
	flows   []*workflow.Descriptor
}

// NewCascadeService creates a CascadeService with injected dependencies.
func NewCascadeService(backend secondary.Backend, audit secondary.AuditLog, flows []*workflow.Descriptor) *CascadeServiceImpl {
	return &CascadeServiceImpl{backend: backend, audit: audit, flows: flows}
}

// buildIndex fetches the repository's full flat task list and builds
// the hierarchy index shared by preview and close.
func (s *CascadeServiceImpl) buildIndex(ctx context.Context, repoPath string) (*tree.Index, error) {
	records, err := s.backend.List(ctx, secondary.TaskFilters{}, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	nodes := make([]*tree.Node, len(records))
	for i, r := range records {
		nodes[i] = &tree.Node{ID: r.ID, Parent: r.Parent, Closed: isClosed(s.flows, r)}
	}
	return tree.BuildIndex(nodes), nil
}

// GetOpenDescendants returns the ids that CascadeClose would close,
// in closing order, without writing anything.
func (s *CascadeServiceImpl) GetOpenDescendants(ctx context.Context, taskID, repoPath string) ([]string, error) {
	idx, err := s.buildIndex(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	return idx.OpenDescendants(taskID), nil
}

// CascadeClose closes every open descendant leaf-first, then the root.
// A failure on one node is recorded and does not halt the rest: one
// broken node must never block cleanup of everything else. The root is
// always attempted last, whatever happened before it.
func (s *CascadeServiceImpl) CascadeClose(ctx context.Context, req primary.CascadeCloseRequest) (*primary.CascadeCloseResponse, error) {
	idx, err := s.buildIndex(ctx, req.RepoPath)
	if err != nil {
		return nil, err
	}

	resp := &primary.CascadeCloseResponse{}
	for _, id := range append(idx.OpenDescendants(req.TaskID), req.TaskID) {
		if err := s.backend.Close(ctx, id, req.Reason, req.RepoPath); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", id, err))
			if s.audit != nil {
				_ = s.audit.LogError(ctx, id, "cascade_close", err.Error())
			}
			continue
		}
		resp.Closed = append(resp.Closed, id)
		if s.audit != nil {
			_ = s.audit.LogClose(ctx, id, req.Reason)
		}
	}
	return resp, nil
}

// Ensure CascadeServiceImpl implements the interface.
var _ primary.CascadeService = (*CascadeServiceImpl)(nil)
