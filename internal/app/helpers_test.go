package app

import (
	"context"
	"sync"

	"github.com/example/loom/internal/adapters/memory"
	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/secondary"
)

// recordingAudit captures audit entries for assertions.
type recordingAudit struct {
	mu          sync.Mutex
	closes      []string
	transitions []string
	errors      []string
}

func (a *recordingAudit) LogClose(ctx context.Context, taskID, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closes = append(a.closes, taskID)
	return nil
}

func (a *recordingAudit) LogTransition(ctx context.Context, taskID, action, detail string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitions = append(a.transitions, taskID+":"+action)
	return nil
}

func (a *recordingAudit) LogError(ctx context.Context, taskID, action, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, taskID+":"+action)
	return nil
}

var _ secondary.AuditLog = (*recordingAudit)(nil)

func defaultFlows() []*workflow.Descriptor {
	return []*workflow.Descriptor{workflow.Builtin()}
}

// openTask builds an open task record with the given parent.
func openTask(id, parent string) *secondary.TaskRecord {
	return &secondary.TaskRecord{ID: id, Title: "task " + id, State: "ready_for_planning", Parent: parent}
}

// closedTask builds a task already in the builtin terminal state.
func closedTask(id, parent string) *secondary.TaskRecord {
	return &secondary.TaskRecord{ID: id, Title: "task " + id, State: "shipped", Parent: parent}
}

func seeded(tasks ...*secondary.TaskRecord) *memory.Backend {
	b := memory.New()
	b.Seed("", tasks...)
	return b
}

// taskSpec is shorthand for table-driven hierarchy setups.
type taskSpec struct {
	id     string
	parent string
	closed bool
}

func seedSpecs(specs ...taskSpec) *memory.Backend {
	b := memory.New()
	for _, s := range specs {
		rec := openTask(s.id, s.parent)
		if s.closed {
			rec = closedTask(s.id, s.parent)
		}
		b.Seed("", rec)
	}
	return b
}
