package primary

import (
	"context"
	"errors"
)

// ErrVerificationInFlight is returned when a verification transition is
// already in progress for the task in this process. Callers must treat
// it as "skip", not as a failure to retry.
var ErrVerificationInFlight = errors.New("verification transition already in flight")

// VerificationService is the primary port for the verification gate.
// Each transition holds the task's single-flight lock only for the
// duration of its label mutation, not for the verification session.
type VerificationService interface {
	// EnterVerification moves a task into verification: sets the stage
	// and transition labels, and records the commit under review when
	// one is supplied.
	EnterVerification(ctx context.Context, req EnterVerificationRequest) (*VerificationStatus, error)

	// PassVerification clears the verification markers after a passed
	// review.
	PassVerification(ctx context.Context, taskID, repoPath string) (*VerificationStatus, error)

	// RetryVerification rejects the current attempt: clears the stage
	// and commit markers, flags the task for rework, and bumps the
	// attempt counter.
	RetryVerification(ctx context.Context, taskID, repoPath string) (*VerificationStatus, error)

	// Status returns the typed verification state of a task.
	Status(ctx context.Context, taskID, repoPath string) (*VerificationStatus, error)

	// BuildPrompt renders the verifier prompt for a task from its
	// tracker fields and recorded commit marker.
	BuildPrompt(ctx context.Context, taskID, repoPath string) (string, error)

	// ParseResult extracts the verifier's outcome and, on failure, its
	// rejection summary from raw verifier output. An empty outcome
	// means the output was inconclusive.
	ParseResult(output string) (outcome string, rejectionSummary string)
}

// EnterVerificationRequest contains parameters for entering
// verification.
type EnterVerificationRequest struct {
	TaskID    string
	CommitSHA string
	RepoPath  string
}

// VerificationStatus is the typed verification state at the port
// boundary.
type VerificationStatus struct {
	TaskID   string
	Stage    string // "none", "verifying", or "retry"
	LockHeld bool   // transition:verification label present
	Attempt  int
	Commit   string
}
