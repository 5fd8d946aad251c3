package app

import (
	"context"
	"log"

	"github.com/example/loom/internal/core/tree"
	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/ports/secondary"
)

// RegroomServiceImpl implements primary.RegroomService: best-effort
// bottom-up auto-closing of ancestors whose children are all closed.
type RegroomServiceImpl struct {
	backend secondary.Backend
	audit   secondary.AuditLog
	flows   []*workflow.Descriptor
}

// NewRegroomService creates a RegroomService with injected dependencies.
func NewRegroomService(backend secondary.Backend, audit secondary.AuditLog, flows []*workflow.Descriptor) *RegroomServiceImpl {
	return &RegroomServiceImpl{backend: backend, audit: audit, flows: flows}
}

// RegroomAncestors walks upward from the task that just changed. Each
// ancestor with children closes once all of its children are closed;
// the first ancestor with remaining open work halts the walk, since
// everything above it necessarily has open work too. All failures are
// logged, never returned: this is an advisory cascade, not a
// consistency guarantee.
func (s *RegroomServiceImpl) RegroomAncestors(ctx context.Context, taskID, repoPath string) []string {
	records, err := s.backend.List(ctx, secondary.TaskFilters{}, repoPath)
	if err != nil {
		log.Printf("regroom %s: failed to list tasks: %v", taskID, err)
		return nil
	}

	nodes := make([]*tree.Node, len(records))
	byID := make(map[string]*tree.Node, len(records))
	for i, r := range records {
		nodes[i] = &tree.Node{ID: r.ID, Parent: r.Parent, Closed: isClosed(s.flows, r)}
		byID[r.ID] = nodes[i]
	}
	idx := tree.BuildIndex(nodes)

	var closed []string
	for _, ancestorID := range idx.AncestorChain(taskID) {
		if !idx.HasChildren(ancestorID) {
			continue
		}
		if !idx.AllChildrenClosed(ancestorID) {
			break
		}
		if node := byID[ancestorID]; node.Closed {
			// Already closed; nothing to do at this level.
			continue
		}

		if err := s.backend.Close(ctx, ancestorID, "all children closed", repoPath); err != nil {
			// Do not guess whether it is safe to keep climbing.
			log.Printf("regroom %s: failed to close ancestor %s: %v", taskID, ancestorID, err)
			if s.audit != nil {
				_ = s.audit.LogError(ctx, ancestorID, "regroom", err.Error())
			}
			break
		}
		// Mark the in-memory view closed so the next level's
		// all-children check sees consistent data without refetching.
		byID[ancestorID].Closed = true
		closed = append(closed, ancestorID)
		if s.audit != nil {
			_ = s.audit.LogClose(ctx, ancestorID, "all children closed")
		}
	}
	return closed
}

// Ensure RegroomServiceImpl implements the interface.
var _ primary.RegroomService = (*RegroomServiceImpl)(nil)
