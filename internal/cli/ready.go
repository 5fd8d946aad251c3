package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/wire"
)

// ReadyCmd returns the ready command
func ReadyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List queued tasks with no open blockers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext()
			repo := repoPath(cmd)

			records, err := wire.Router().ListReady(ctx, repo)
			if err != nil {
				return fmt.Errorf("failed to list ready tasks: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("Nothing is ready.")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s: %s [%s] P%d\n", r.ID, r.Title, r.State, r.Priority)
			}
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

// PromptCmd returns the prompt command
func PromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Build agent prompts from the tracker",
	}

	take := &cobra.Command{
		Use:   "take [task-id]",
		Short: "Print the claim prompt for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := wire.Router().BuildTakePrompt(cmdContext(), args[0], repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to build take prompt: %w", err)
			}
			fmt.Print(prompt)
			return nil
		},
	}
	addRepoFlag(take)

	poll := &cobra.Command{
		Use:   "poll",
		Short: "Print the ready-work polling prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := wire.Router().BuildPollPrompt(cmdContext(), repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to build poll prompt: %w", err)
			}
			fmt.Print(prompt)
			return nil
		},
	}
	addRepoFlag(poll)

	cmd.AddCommand(take)
	cmd.AddCommand(poll)
	return cmd
}

// DepCmd returns the dep command
func DepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependencies between tasks",
	}

	add := &cobra.Command{
		Use:   "add [task-id] [blocker-id]",
		Short: "Record that a task is blocked by another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Router().AddDependency(cmdContext(), args[0], args[1], repoPath(cmd)); err != nil {
				return fmt.Errorf("failed to add dependency: %w", err)
			}
			fmt.Printf("%s %s now blocked by %s\n", okMark, args[0], args[1])
			return nil
		},
	}
	addRepoFlag(add)

	remove := &cobra.Command{
		Use:   "remove [task-id] [blocker-id]",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Router().RemoveDependency(cmdContext(), args[0], args[1], repoPath(cmd)); err != nil {
				return fmt.Errorf("failed to remove dependency: %w", err)
			}
			fmt.Printf("%s Removed %s → %s\n", okMark, args[0], args[1])
			return nil
		},
	}
	addRepoFlag(remove)

	list := &cobra.Command{
		Use:   "list [task-id]",
		Short: "List dependency edges touching a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := wire.Router().ListDependencies(cmdContext(), args[0], repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to list dependencies: %w", err)
			}
			if len(deps) == 0 {
				fmt.Println("No dependencies.")
				return nil
			}
			for _, d := range deps {
				fmt.Printf("%s → %s (%s)\n", d.From, d.To, d.Type)
			}
			return nil
		},
	}
	addRepoFlag(list)

	cmd.AddCommand(add)
	cmd.AddCommand(remove)
	cmd.AddCommand(list)
	return cmd
}
