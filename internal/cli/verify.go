package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/wire"
)

// VerifyCmd returns the verify command
func VerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Drive the verification gate on a task",
		Long: `Move tasks through the verification gate: enter, pass, or reject
with retry. Verification sub-state lives in task labels, so it works
with any tracker backend.`,
	}

	cmd.AddCommand(verifyEnterCmd())
	cmd.AddCommand(verifyPassCmd())
	cmd.AddCommand(verifyRetryCmd())
	cmd.AddCommand(verifyStatusCmd())
	cmd.AddCommand(verifyPromptCmd())
	cmd.AddCommand(verifyParseCmd())

	return cmd
}

func printVerificationStatus(status *primary.VerificationStatus) {
	fmt.Printf("%s: stage=%s", status.TaskID, status.Stage)
	if status.Attempt > 0 {
		fmt.Printf(" attempt=%d", status.Attempt)
	}
	if status.Commit != "" {
		fmt.Printf(" commit=%s", status.Commit)
	}
	if status.LockHeld {
		fmt.Printf(" (transition in flight)")
	}
	fmt.Println()
}

func verifyEnterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enter [task-id]",
		Short: "Move a task into verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commit, _ := cmd.Flags().GetString("commit")

			status, err := wire.VerificationService().EnterVerification(cmdContext(), primary.EnterVerificationRequest{
				TaskID:    args[0],
				CommitSHA: commit,
				RepoPath:  repoPath(cmd),
			})
			if errors.Is(err, primary.ErrVerificationInFlight) {
				return fmt.Errorf("a verification transition for %s is already in flight", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to enter verification: %w", err)
			}

			fmt.Printf("%s %s entered verification\n", okMark, args[0])
			printVerificationStatus(status)
			return nil
		},
	}

	cmd.Flags().String("commit", "", "revision under verification")
	addRepoFlag(cmd)
	return cmd
}

func verifyPassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pass [task-id]",
		Short: "Record a passed verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := wire.VerificationService().PassVerification(cmdContext(), args[0], repoPath(cmd))
			if errors.Is(err, primary.ErrVerificationInFlight) {
				return fmt.Errorf("a verification transition for %s is already in flight", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to pass verification: %w", err)
			}

			fmt.Printf("%s %s passed verification\n", okMark, args[0])
			printVerificationStatus(status)
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

func verifyRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [task-id]",
		Short: "Reject the current attempt and queue rework",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := wire.VerificationService().RetryVerification(cmdContext(), args[0], repoPath(cmd))
			if errors.Is(err, primary.ErrVerificationInFlight) {
				return fmt.Errorf("a verification transition for %s is already in flight", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to retry verification: %w", err)
			}

			fmt.Printf("%s %s rejected, queued for rework\n", failMark, args[0])
			printVerificationStatus(status)
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

func verifyStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show a task's verification state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := wire.VerificationService().Status(cmdContext(), args[0], repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to get verification status: %w", err)
			}
			printVerificationStatus(status)
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

func verifyPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [task-id]",
		Short: "Print the verifier prompt for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := wire.VerificationService().BuildPrompt(cmdContext(), args[0], repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to build prompt: %w", err)
			}
			fmt.Print(prompt)
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

func verifyParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse verifier output from stdin",
		Long: `Read a verifier's output from stdin and report the outcome line and
any rejection summary. Exits nonzero when no outcome is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}

			outcome, summary := wire.VerificationService().ParseResult(string(raw))
			if outcome == "" {
				return fmt.Errorf("no VERIFICATION_RESULT line found")
			}
			fmt.Printf("outcome: %s\n", outcome)
			if summary != "" {
				fmt.Printf("rejection: %s\n", summary)
			}
			return nil
		},
	}
	return cmd
}
