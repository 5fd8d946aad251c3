package verification

import (
	"fmt"
	"strings"
)

// Outcome values a verifier may report.
const (
	OutcomePass             = "pass"
	OutcomeFailRequirements = "fail-requirements"
	OutcomeFailBugs         = "fail-bugs"
)

// ResultMarker is the line prefix the verifier must emit.
const ResultMarker = "VERIFICATION_RESULT:"

// RejectionMarker prefixes the one-line summary on failure outcomes.
const RejectionMarker = "REJECTION_SUMMARY:"

// PromptInput carries the task context rendered into a verifier prompt.
type PromptInput struct {
	TaskID      string
	Title       string
	CommitSHA   string
	Description string
	Acceptance  string
	Notes       string
	TrackerType string
}

// BuildVerifierPrompt renders the instruction block handed to the
// verifier agent. The prompt ends with the output contract: the
// response must contain a VERIFICATION_RESULT line, plus a
// REJECTION_SUMMARY line on failure.
func BuildVerifierPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are verifying completed work on task %s: %s\n", in.TaskID, in.Title)
	if in.CommitSHA != "" {
		fmt.Fprintf(&b, "The commit under review is %s.\n", in.CommitSHA)
	}
	if in.TrackerType != "" {
		fmt.Fprintf(&b, "The task is tracked in the %s tracker.\n", in.TrackerType)
	}
	b.WriteString("\n")

	if in.Description != "" {
		fmt.Fprintf(&b, "Description:\n%s\n\n", in.Description)
	}
	if in.Acceptance != "" {
		fmt.Fprintf(&b, "Acceptance criteria:\n%s\n\n", in.Acceptance)
	}
	if in.Notes != "" {
		fmt.Fprintf(&b, "Notes:\n%s\n\n", in.Notes)
	}

	b.WriteString("Review the commit against the task's requirements and acceptance criteria.\n")
	b.WriteString("Check both that the requirements are met and that the change introduces no bugs.\n\n")
	fmt.Fprintf(&b, "Your output MUST contain a line of the exact form %s<outcome>\n", ResultMarker)
	fmt.Fprintf(&b, "where <outcome> is one of: %s, %s, %s.\n", OutcomePass, OutcomeFailRequirements, OutcomeFailBugs)
	fmt.Fprintf(&b, "On a failure outcome, also emit a line of the form %s<one-line reason>.\n", RejectionMarker)

	return b.String()
}

// ParseVerifierResult scans verifier output for the first
// VERIFICATION_RESULT marker and returns the outcome verbatim, or ""
// when no marker is present. Absence is a valid, expected outcome
// meaning "inconclusive"; this function never fails.
func ParseVerifierResult(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, ResultMarker); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// ParseRejectionSummary returns the one-line rejection reason, or ""
// when the output carries none.
func ParseRejectionSummary(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, RejectionMarker); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
