// Package cli contains the cobra commands of the loom binary. Commands
// are thin translators: flags in, service calls through wire, formatted
// text out.
package cli

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/loom/internal/ctxutil"
	"github.com/example/loom/internal/ports/primary"
)

// cmdContext builds the base context for a command invocation. The
// LOOM_ACTOR environment variable identifies the acting agent or user
// in audit entries.
func cmdContext() context.Context {
	ctx := context.Background()
	if actor := os.Getenv("LOOM_ACTOR"); actor != "" {
		ctx = ctxutil.WithActorID(ctx, actor)
	}
	return ctx
}

// addRepoFlag registers the shared --repo flag.
func addRepoFlag(cmd *cobra.Command) {
	cmd.Flags().String("repo", "", "repository path (defaults to the current directory)")
}

// repoPath resolves the repository the command operates on. An
// explicit --repo wins; otherwise the working directory, so marker
// detection sees the repo the user is standing in.
func repoPath(cmd *cobra.Command) string {
	if repo, _ := cmd.Flags().GetString("repo"); repo != "" {
		return repo
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// stateColor picks a display color for a task's position.
func stateColor(task *primary.Task) *color.Color {
	switch {
	case task.RequiresHumanAction:
		return color.New(color.FgYellow)
	case task.IsAgentClaimable:
		return color.New(color.FgGreen)
	case task.NextActionOwner == "none":
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgCyan)
	}
}
