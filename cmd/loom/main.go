package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/cli"
	"github.com/example/loom/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "loom",
		Short:   "loom - task lifecycle and verification over pluggable trackers",
		Version: version.String(),
		Long: `loom drives task workflows, verification gates, and hierarchy
cleanup against whichever issue tracker owns a repository. Backends are
detected per repository by marker directory (.knot, .loom).`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.TaskCmd())
	rootCmd.AddCommand(cli.ReadyCmd())
	rootCmd.AddCommand(cli.DepCmd())
	rootCmd.AddCommand(cli.CascadeCmd())
	rootCmd.AddCommand(cli.RegroomCmd())
	rootCmd.AddCommand(cli.VerifyCmd())
	rootCmd.AddCommand(cli.PromptCmd())
	rootCmd.AddCommand(cli.BackendCmd())
	rootCmd.AddCommand(cli.WorkflowCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
