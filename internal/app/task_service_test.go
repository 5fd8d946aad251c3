package app

import (
	"context"
	"reflect"
	"testing"

	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/ports/secondary"
)

func TestListTasksStripsInternalLabels(t *testing.T) {
	backend := seeded(&secondary.TaskRecord{
		ID:     "TASK-1",
		Title:  "wire the adapter",
		State:  "ready_for_planning",
		Labels: []string{"stage:verification", "transition:verification", "attempt:1", "commit:abc", "workflow:default", "frontend"},
	})
	svc := NewTaskService(backend, defaultFlows())

	tasks, err := svc.ListTasks(context.Background(), primary.ListTasksRequest{})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if !reflect.DeepEqual(tasks[0].Labels, []string{"frontend"}) {
		t.Errorf("Labels = %v, want only user labels", tasks[0].Labels)
	}
}

func TestGetTaskRuntimeFlags(t *testing.T) {
	tests := []struct {
		name          string
		state         string
		wantClaimable bool
		wantHuman     bool
		wantOwner     string
	}{
		{"queued agent step", "ready_for_planning", true, false, "agent"},
		{"active step", "planning", false, false, "none"},
		{"queued human step", "ready_for_shipment", false, true, "human"},
		{"terminal", "shipped", false, false, "none"},
		{"deferred hold", "deferred", false, false, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := seeded(&secondary.TaskRecord{ID: "TASK-1", State: tt.state})
			svc := NewTaskService(backend, defaultFlows())

			task, err := svc.GetTask(context.Background(), "TASK-1", "")
			if err != nil {
				t.Fatalf("GetTask() error = %v", err)
			}
			if task.IsAgentClaimable != tt.wantClaimable {
				t.Errorf("IsAgentClaimable = %v, want %v", task.IsAgentClaimable, tt.wantClaimable)
			}
			if task.RequiresHumanAction != tt.wantHuman {
				t.Errorf("RequiresHumanAction = %v, want %v", task.RequiresHumanAction, tt.wantHuman)
			}
			if task.NextActionOwner != tt.wantOwner {
				t.Errorf("NextActionOwner = %q, want %q", task.NextActionOwner, tt.wantOwner)
			}
		})
	}
}

func TestGetTaskNotFound(t *testing.T) {
	svc := NewTaskService(seeded(), defaultFlows())
	_, err := svc.GetTask(context.Background(), "TASK-404", "")
	if !secondary.IsNotFound(err) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestCreateTaskStartsQueued(t *testing.T) {
	backend := seeded()
	svc := NewTaskService(backend, defaultFlows())

	task, err := svc.CreateTask(context.Background(), primary.CreateTaskRequest{
		Title: "build the router",
		Type:  "feature",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.ID == "" {
		t.Error("created task has no id")
	}
	if task.State != "ready_for_planning" {
		t.Errorf("State = %q, want ready_for_planning", task.State)
	}
	if !task.IsAgentClaimable {
		t.Error("newly queued task should be agent-claimable")
	}
}

func TestRollbackActive(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		wantState string
	}{
		{"active rolls back", "implementation", "ready_for_implementation"},
		{"queued unchanged", "ready_for_review", "ready_for_review"},
		{"terminal unchanged", "shipped", "shipped"},
		{"deferred unchanged", "deferred", "deferred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := seeded(&secondary.TaskRecord{ID: "TASK-1", State: tt.state})
			svc := NewTaskService(backend, defaultFlows())

			task, err := svc.RollbackActive(context.Background(), "TASK-1", "")
			if err != nil {
				t.Fatalf("RollbackActive() error = %v", err)
			}
			if task.State != tt.wantState {
				t.Errorf("State = %q, want %q", task.State, tt.wantState)
			}

			rec, err := backend.Get(context.Background(), "TASK-1", "")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if rec.State != tt.wantState {
				t.Errorf("persisted state = %q, want %q", rec.State, tt.wantState)
			}
		})
	}
}

func TestCloseTask(t *testing.T) {
	backend := seeded(openTask("TASK-1", ""))
	svc := NewTaskService(backend, defaultFlows())

	if err := svc.CloseTask(context.Background(), "TASK-1", "done", ""); err != nil {
		t.Fatalf("CloseTask() error = %v", err)
	}
	rec, err := backend.Get(context.Background(), "TASK-1", "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.State != "shipped" {
		t.Errorf("state = %q, want shipped", rec.State)
	}
}
