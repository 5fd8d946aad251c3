package knotcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/example/loom/internal/ports/secondary"
)

// knotTask is the JSON shape the knot CLI emits for a single task.
type knotTask struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Notes       string    `json:"notes"`
	Acceptance  string    `json:"acceptance_criteria"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	IssueType   string    `json:"issue_type"`
	Labels      []string  `json:"labels"`
	Parent      string    `json:"parent"`
	Created     time.Time `json:"created_at"`
	Updated     time.Time `json:"updated_at"`
}

// knotDependency is the JSON shape for a dependency edge.
type knotDependency struct {
	From string `json:"from_id"`
	To   string `json:"to_id"`
	Type string `json:"dep_type"`
}

func (t *knotTask) toRecord() *secondary.TaskRecord {
	return &secondary.TaskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Notes:       t.Notes,
		Acceptance:  t.Acceptance,
		State:       t.Status,
		Priority:    t.Priority,
		Type:        t.IssueType,
		Labels:      t.Labels,
		Parent:      t.Parent,
		Created:     t.Created,
		Updated:     t.Updated,
	}
}

func decodeTask(raw []byte) (*secondary.TaskRecord, error) {
	var t knotTask
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, secondary.Internal(fmt.Errorf("failed to decode knot output: %w", err), false)
	}
	return t.toRecord(), nil
}

func decodeTaskList(raw []byte) ([]*secondary.TaskRecord, error) {
	// knot prints null (not []) when nothing matches.
	if strings.TrimSpace(string(raw)) == "" || strings.TrimSpace(string(raw)) == "null" {
		return nil, nil
	}
	var tasks []knotTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, secondary.Internal(fmt.Errorf("failed to decode knot output: %w", err), false)
	}
	out := make([]*secondary.TaskRecord, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].toRecord()
	}
	return out, nil
}

func decodeDependencyList(raw []byte) ([]*secondary.Dependency, error) {
	if strings.TrimSpace(string(raw)) == "" || strings.TrimSpace(string(raw)) == "null" {
		return nil, nil
	}
	var deps []knotDependency
	if err := json.Unmarshal(raw, &deps); err != nil {
		return nil, secondary.Internal(fmt.Errorf("failed to decode knot output: %w", err), false)
	}
	out := make([]*secondary.Dependency, len(deps))
	for i, d := range deps {
		out[i] = &secondary.Dependency{From: d.From, To: d.To, Type: d.Type}
	}
	return out, nil
}

// retryableFragments mark transient knot failures worth resubmitting.
var retryableFragments = []string{
	"database is locked",
	"connection refused",
	"connection reset",
	"timeout",
	"temporarily unavailable",
}

// classifyError maps a raw subprocess failure onto the backend error
// taxonomy.
func classifyError(err error) *secondary.BackendError {
	var be *secondary.BackendError
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &secondary.BackendError{
			Code:    secondary.CodeUnavailable,
			Message: "knot binary not found in PATH",
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "no such issue") {
		return &secondary.BackendError{Code: secondary.CodeNotFound, Message: err.Error()}
	}
	for _, f := range retryableFragments {
		if strings.Contains(msg, f) {
			return &secondary.BackendError{Code: secondary.CodeInternal, Message: err.Error(), Retryable: true}
		}
	}
	return &secondary.BackendError{Code: secondary.CodeInternal, Message: err.Error()}
}

func joinLabels(labels []string) string {
	return strings.Join(labels, ",")
}

func buildTakePrompt(task *secondary.TaskRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Take task %s: %s\n\n", task.ID, task.Title)
	if task.Description != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n\n", task.Description)
	}
	if task.Acceptance != "" {
		fmt.Fprintf(&sb, "Acceptance criteria:\n%s\n\n", task.Acceptance)
	}
	sb.WriteString("Move the task to its active state with `knot update`, do the work, and record progress in the notes.\n")
	return sb.String()
}
