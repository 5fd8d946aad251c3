// Package verification contains the pure business logic for the
// verification gate. Sub-state is encoded entirely in task labels so it
// composes with any workflow; functions here inspect and produce label
// sets without side effects and never fail.
package verification

import (
	"fmt"
	"strconv"
	"strings"
)

// Labels recognized by the verification gate.
const (
	// LabelTransitionLock marks an in-flight verification transition.
	// It is an exclusive marker preventing overlapping automated
	// transitions on the same task.
	LabelTransitionLock = "transition:verification"

	// LabelStageVerification marks a task awaiting or undergoing
	// verification.
	LabelStageVerification = "stage:verification"

	// LabelStageRetry marks a rejected task queued for rework.
	LabelStageRetry = "stage:retry"

	// AttemptPrefix labels carry the verification attempt count,
	// e.g. "attempt:2". Absence means zero attempts.
	AttemptPrefix = "attempt:"

	// CommitPrefix labels carry the revision under verification,
	// e.g. "commit:a1b2c3".
	CommitPrefix = "commit:"
)

// internalPrefixes are label namespaces that encode bookkeeping and
// must never surface as user-facing tags.
var internalPrefixes = []string{"stage:", "transition:", "attempt:", "commit:", "workflow:", "wave:"}

// Delta is a label-set mutation: labels to add and labels to remove.
type Delta struct {
	Add    []string
	Remove []string
}

// Empty reports whether the delta is a no-op.
func (d Delta) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsInternalLabel reports whether a label belongs to an internal
// bookkeeping namespace and should be hidden from user-facing listings.
func IsInternalLabel(label string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(label, p) {
			return true
		}
	}
	return false
}

// UserLabels filters a label set down to user-facing tags.
func UserLabels(labels []string) []string {
	var out []string
	for _, l := range labels {
		if !IsInternalLabel(l) {
			out = append(out, l)
		}
	}
	return out
}

// ComputeEntryLabels returns the delta that moves a task into
// verification: the transition lock and stage marker are added if
// missing, and a prior retry flag is cleared. Attempt and commit
// markers are never touched on entry. Idempotent.
func ComputeEntryLabels(current []string) Delta {
	var d Delta
	if !hasLabel(current, LabelTransitionLock) {
		d.Add = append(d.Add, LabelTransitionLock)
	}
	if !hasLabel(current, LabelStageVerification) {
		d.Add = append(d.Add, LabelStageVerification)
	}
	if hasLabel(current, LabelStageRetry) {
		d.Remove = append(d.Remove, LabelStageRetry)
	}
	return d
}

// ComputePassLabels returns the delta for a passed verification: the
// transition lock and stage marker are removed, nothing is added.
// Tolerates partial prior state. Idempotent.
func ComputePassLabels(current []string) Delta {
	var d Delta
	if hasLabel(current, LabelTransitionLock) {
		d.Remove = append(d.Remove, LabelTransitionLock)
	}
	if hasLabel(current, LabelStageVerification) {
		d.Remove = append(d.Remove, LabelStageVerification)
	}
	return d
}

// ComputeRetryLabels returns the delta for a rejected verification:
// the lock, stage marker, and any attempt/commit markers are removed;
// the retry flag and an incremented attempt label are added. The first
// retry yields attempt:1. A task already settled in the retry state
// gets an empty delta, so re-application never burns another attempt.
func ComputeRetryLabels(current []string) Delta {
	if hasLabel(current, LabelStageRetry) &&
		!hasLabel(current, LabelStageVerification) &&
		!hasLabel(current, LabelTransitionLock) {
		return Delta{}
	}

	var d Delta
	if hasLabel(current, LabelTransitionLock) {
		d.Remove = append(d.Remove, LabelTransitionLock)
	}
	if hasLabel(current, LabelStageVerification) {
		d.Remove = append(d.Remove, LabelStageVerification)
	}
	for _, l := range current {
		if strings.HasPrefix(l, AttemptPrefix) || strings.HasPrefix(l, CommitPrefix) {
			d.Remove = append(d.Remove, l)
		}
	}
	if !hasLabel(current, LabelStageRetry) {
		d.Add = append(d.Add, LabelStageRetry)
	}
	next := BuildAttemptLabel(ExtractAttemptNumber(current) + 1)
	if !hasLabel(current, next) {
		d.Add = append(d.Add, next)
	}
	return d
}

// ApplyDelta returns the label set after applying a delta. Order of
// surviving labels is preserved; added labels are appended.
func ApplyDelta(current []string, d Delta) []string {
	removed := make(map[string]bool, len(d.Remove))
	for _, l := range d.Remove {
		removed[l] = true
	}
	var out []string
	for _, l := range current {
		if !removed[l] {
			out = append(out, l)
		}
	}
	for _, l := range d.Add {
		if !hasLabel(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// ExtractCommitLabel returns the revision carried by the first
// commit:<sha> label, or "" when absent.
func ExtractCommitLabel(labels []string) string {
	for _, l := range labels {
		if rest, ok := strings.CutPrefix(l, CommitPrefix); ok && rest != "" {
			return rest
		}
	}
	return ""
}

// ExtractAttemptNumber returns the attempt count carried by the first
// attempt:<N> label. Absent or malformed labels count as zero; the
// result is never negative.
func ExtractAttemptNumber(labels []string) int {
	for _, l := range labels {
		rest, ok := strings.CutPrefix(l, AttemptPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

// BuildCommitLabel builds a commit:<sha> label.
func BuildCommitLabel(sha string) string {
	return CommitPrefix + sha
}

// BuildAttemptLabel builds an attempt:<N> label.
func BuildAttemptLabel(n int) string {
	return fmt.Sprintf("%s%d", AttemptPrefix, n)
}

// HasTransitionLock reports whether a verification transition is in
// flight for the task.
func HasTransitionLock(labels []string) bool {
	return hasLabel(labels, LabelTransitionLock)
}

// IsInVerification reports whether the task is awaiting or undergoing
// verification.
func IsInVerification(labels []string) bool {
	return hasLabel(labels, LabelStageVerification)
}

// IsInRetry reports whether the task was rejected and queued for rework.
func IsInRetry(labels []string) bool {
	return hasLabel(labels, LabelStageRetry)
}
