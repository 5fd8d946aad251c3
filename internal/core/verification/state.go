package verification

// Kind names the verification machine's position.
type Kind string

const (
	// KindNone means the task is outside the verification gate.
	KindNone Kind = "none"
	// KindVerifying means the task is awaiting or undergoing
	// verification.
	KindVerifying Kind = "verifying"
	// KindRetry means the task was rejected and is queued for rework.
	KindRetry Kind = "retry"
)

// State is the typed view of the label-encoded verification machine.
// Internal logic works on this struct; labels are parsed once at the
// backend boundary instead of being re-scanned as strings.
type State struct {
	Kind     Kind
	LockHeld bool
	Attempt  int
	Commit   string
}

// StateFromLabels converts a task's label set into its typed
// verification state. Stage labels win over bare markers: a task
// carrying both stage labels (malformed data) reports as verifying.
func StateFromLabels(labels []string) State {
	s := State{
		Kind:     KindNone,
		LockHeld: HasTransitionLock(labels),
		Attempt:  ExtractAttemptNumber(labels),
		Commit:   ExtractCommitLabel(labels),
	}
	switch {
	case IsInVerification(labels):
		s.Kind = KindVerifying
	case IsInRetry(labels):
		s.Kind = KindRetry
	}
	return s
}
