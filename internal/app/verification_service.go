package app

import (
	"context"
	"fmt"

	"github.com/example/loom/internal/core/verification"
	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/ports/secondary"
)

// VerificationServiceImpl implements primary.VerificationService. Each
// transition acquires the task's process-local lock, reads the current
// labels, applies a pure label transform through the backend, and
// releases the lock. The lock covers only the label mutation, not the
// verification session.
type VerificationServiceImpl struct {
	backend secondary.Backend
	locks   *verification.LockManager
	audit   secondary.AuditLog
}

// NewVerificationService creates a VerificationService with injected
// dependencies.
func NewVerificationService(backend secondary.Backend, locks *verification.LockManager, audit secondary.AuditLog) *VerificationServiceImpl {
	return &VerificationServiceImpl{backend: backend, locks: locks, audit: audit}
}

func statusFromLabels(taskID string, labels []string) *primary.VerificationStatus {
	st := verification.StateFromLabels(labels)
	return &primary.VerificationStatus{
		TaskID:   taskID,
		Stage:    string(st.Kind),
		LockHeld: st.LockHeld,
		Attempt:  st.Attempt,
		Commit:   st.Commit,
	}
}

// transition runs one locked read-transform-write cycle on the task's
// labels and returns the resulting status.
func (s *VerificationServiceImpl) transition(ctx context.Context, taskID, repoPath, action string, transform func([]string) verification.Delta) (*primary.VerificationStatus, error) {
	if !s.locks.Acquire(taskID) {
		return nil, primary.ErrVerificationInFlight
	}
	defer s.locks.Release(taskID)

	record, err := s.backend.Get(ctx, taskID, repoPath)
	if err != nil {
		return nil, err
	}

	delta := transform(record.Labels)
	labels := verification.ApplyDelta(record.Labels, delta)
	if !delta.Empty() {
		if err := s.backend.Update(ctx, taskID, secondary.UpdateFields{Labels: &labels}, repoPath); err != nil {
			return nil, fmt.Errorf("failed to update labels on %s: %w", taskID, err)
		}
		if s.audit != nil {
			_ = s.audit.LogTransition(ctx, taskID, action, fmt.Sprintf("add=%v remove=%v", delta.Add, delta.Remove))
		}
	}
	return statusFromLabels(taskID, labels), nil
}

// EnterVerification moves a task into verification and records the
// commit under review when one is supplied.
func (s *VerificationServiceImpl) EnterVerification(ctx context.Context, req primary.EnterVerificationRequest) (*primary.VerificationStatus, error) {
	return s.transition(ctx, req.TaskID, req.RepoPath, "verification_enter", func(current []string) verification.Delta {
		delta := verification.ComputeEntryLabels(current)
		if req.CommitSHA != "" {
			if prior := verification.ExtractCommitLabel(current); prior != req.CommitSHA {
				if prior != "" {
					delta.Remove = append(delta.Remove, verification.BuildCommitLabel(prior))
				}
				delta.Add = append(delta.Add, verification.BuildCommitLabel(req.CommitSHA))
			}
		}
		return delta
	})
}

// PassVerification clears the verification markers after a passed
// review.
func (s *VerificationServiceImpl) PassVerification(ctx context.Context, taskID, repoPath string) (*primary.VerificationStatus, error) {
	return s.transition(ctx, taskID, repoPath, "verification_pass", verification.ComputePassLabels)
}

// RetryVerification rejects the current attempt and queues the task
// for rework with a bumped attempt counter.
func (s *VerificationServiceImpl) RetryVerification(ctx context.Context, taskID, repoPath string) (*primary.VerificationStatus, error) {
	return s.transition(ctx, taskID, repoPath, "verification_retry", verification.ComputeRetryLabels)
}

// Status returns the typed verification state of a task.
func (s *VerificationServiceImpl) Status(ctx context.Context, taskID, repoPath string) (*primary.VerificationStatus, error) {
	record, err := s.backend.Get(ctx, taskID, repoPath)
	if err != nil {
		return nil, err
	}
	return statusFromLabels(taskID, record.Labels), nil
}

// BuildPrompt renders the verifier prompt from the task's tracker
// fields and its recorded commit marker.
func (s *VerificationServiceImpl) BuildPrompt(ctx context.Context, taskID, repoPath string) (string, error) {
	record, err := s.backend.Get(ctx, taskID, repoPath)
	if err != nil {
		return "", err
	}
	return verification.BuildVerifierPrompt(verification.PromptInput{
		TaskID:      record.ID,
		Title:       record.Title,
		CommitSHA:   verification.ExtractCommitLabel(record.Labels),
		Description: record.Description,
		Acceptance:  record.Acceptance,
		Notes:       record.Notes,
		TrackerType: s.trackerName(repoPath),
	}), nil
}

// trackerName reports which concrete tracker serves the repo. When the
// injected backend is the router it resolves per repository; concrete
// backends answer for themselves.
func (s *VerificationServiceImpl) trackerName(repoPath string) string {
	if resolver, ok := s.backend.(interface {
		BackendNameForRepo(string) (string, error)
	}); ok {
		if name, err := resolver.BackendNameForRepo(repoPath); err == nil {
			return name
		}
	}
	return s.backend.Name()
}

// ParseResult extracts the verifier's outcome and rejection summary.
func (s *VerificationServiceImpl) ParseResult(output string) (string, string) {
	return verification.ParseVerifierResult(output), verification.ParseRejectionSummary(output)
}

// Ensure VerificationServiceImpl implements the interface.
var _ primary.VerificationService = (*VerificationServiceImpl)(nil)
