package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/wire"
)

// CascadeCmd returns the cascade command
func CascadeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cascade [task-id]",
		Short: "Close a task and all of its open descendants",
		Long: `Close every open descendant of a task leaf-first, then the task
itself. A failure on one node is reported but does not stop the rest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext()
			reason, _ := cmd.Flags().GetString("reason")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			repo := repoPath(cmd)

			if dryRun {
				ids, err := wire.CascadeService().GetOpenDescendants(ctx, args[0], repo)
				if err != nil {
					return fmt.Errorf("failed to preview cascade: %w", err)
				}
				if len(ids) == 0 {
					fmt.Printf("No open descendants; only %s would be closed.\n", args[0])
					return nil
				}
				fmt.Printf("Would close %d task(s) before %s:\n", len(ids), args[0])
				for _, id := range ids {
					fmt.Printf("  %s\n", id)
				}
				return nil
			}

			resp, err := wire.CascadeService().CascadeClose(ctx, primary.CascadeCloseRequest{
				TaskID:   args[0],
				Reason:   reason,
				RepoPath: repo,
			})
			if err != nil {
				return fmt.Errorf("failed to cascade close: %w", err)
			}

			for _, id := range resp.Closed {
				fmt.Printf("%s Closed %s\n", okMark, id)
			}
			for _, e := range resp.Errors {
				fmt.Printf("%s %s\n", failMark, e)
			}
			if len(resp.Errors) > 0 {
				fmt.Printf("\nClosed %d, failed %d. Re-run after fixing the failures.\n",
					len(resp.Closed), len(resp.Errors))
			}
			return nil
		},
	}

	cmd.Flags().String("reason", "", "why the hierarchy is being closed")
	cmd.Flags().Bool("dry-run", false, "print what would be closed without closing")
	addRepoFlag(cmd)
	return cmd
}

// RegroomCmd returns the regroom command
func RegroomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regroom [task-id]",
		Short: "Auto-close ancestors whose children are all closed",
		Long: `Walk upward from a task that just changed and close each ancestor
whose children are now all closed, stopping at the first one with
remaining open work.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			closed := wire.RegroomService().RegroomAncestors(cmdContext(), args[0], repoPath(cmd))
			if len(closed) == 0 {
				fmt.Println("No ancestors to close.")
				return nil
			}
			for _, id := range closed {
				fmt.Printf("%s Auto-closed %s (all children closed)\n", okMark, id)
			}
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}
