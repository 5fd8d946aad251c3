package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/wire"
)

// TaskCmd returns the task command
func TaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks in the repository's tracker",
		Long:  "Create, list, show, close, and roll back tasks through whichever tracker backend owns the repository.",
	}

	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskCloseCmd())
	cmd.AddCommand(taskRollbackCmd())

	return cmd
}

func taskCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a new task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext()
			description, _ := cmd.Flags().GetString("description")
			taskType, _ := cmd.Flags().GetString("type")
			priority, _ := cmd.Flags().GetInt("priority")
			parent, _ := cmd.Flags().GetString("parent")

			task, err := wire.TaskService().CreateTask(ctx, primary.CreateTaskRequest{
				Title:       args[0],
				Description: description,
				Type:        taskType,
				Priority:    priority,
				Parent:      parent,
				RepoPath:    repoPath(cmd),
			})
			if err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			fmt.Printf("%s Created task %s: %s\n", okMark, task.ID, task.Title)
			fmt.Printf("  State: %s\n", task.State)
			if task.Parent != "" {
				fmt.Printf("  Parent: %s\n", task.Parent)
			}
			return nil
		},
	}

	cmd.Flags().String("description", "", "task description")
	cmd.Flags().String("type", "task", "task type (task, feature, bug, epic)")
	cmd.Flags().Int("priority", 2, "priority 0 (highest) through 4 (lowest)")
	cmd.Flags().String("parent", "", "parent task ID")
	addRepoFlag(cmd)
	return cmd
}

func taskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext()
			state, _ := cmd.Flags().GetString("state")
			taskType, _ := cmd.Flags().GetString("type")
			parent, _ := cmd.Flags().GetString("parent")

			tasks, err := wire.TaskService().ListTasks(ctx, primary.ListTasksRequest{
				State:    state,
				Type:     taskType,
				Parent:   parent,
				RepoPath: repoPath(cmd),
			})
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			fmt.Printf("Found %d task(s):\n\n", len(tasks))
			for _, task := range tasks {
				printTaskLine(task)
			}
			return nil
		},
	}

	cmd.Flags().String("state", "", "filter by state")
	cmd.Flags().String("type", "", "filter by type")
	cmd.Flags().String("parent", "", "filter by parent task ID")
	addRepoFlag(cmd)
	return cmd
}

func printTaskLine(task *primary.Task) {
	state := stateColor(task).Sprintf("[%s]", task.State)
	typeStr := ""
	if task.Type != "" {
		typeStr = fmt.Sprintf(" (%s)", task.Type)
	}
	fmt.Printf("%s: %s%s %s\n", task.ID, task.Title, typeStr, state)
	if task.RequiresHumanAction {
		fmt.Printf("   needs human action\n")
	}
	if len(task.Labels) > 0 {
		fmt.Printf("   labels: %s\n", strings.Join(task.Labels, ", "))
	}
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [task-id]",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := wire.TaskService().GetTask(cmdContext(), args[0], repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to get task: %w", err)
			}

			fmt.Printf("%s: %s\n", task.ID, task.Title)
			fmt.Printf("  State:    %s\n", task.State)
			fmt.Printf("  Type:     %s\n", task.Type)
			fmt.Printf("  Priority: P%d\n", task.Priority)
			if task.Parent != "" {
				fmt.Printf("  Parent:   %s\n", task.Parent)
			}
			if len(task.Labels) > 0 {
				fmt.Printf("  Labels:   %s\n", strings.Join(task.Labels, ", "))
			}
			fmt.Printf("  Next action owner: %s\n", task.NextActionOwner)
			if task.IsAgentClaimable {
				fmt.Println("  Agent-claimable")
			}
			if task.RequiresHumanAction {
				fmt.Println("  Requires human action")
			}
			if task.Description != "" {
				fmt.Printf("\n%s\n", task.Description)
			}
			if task.Acceptance != "" {
				fmt.Printf("\nAcceptance criteria:\n%s\n", task.Acceptance)
			}
			if task.Notes != "" {
				fmt.Printf("\nNotes:\n%s\n", task.Notes)
			}
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

func taskCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close [task-id]",
		Short: "Close a task and regroom its ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext()
			reason, _ := cmd.Flags().GetString("reason")
			repo := repoPath(cmd)

			if err := wire.TaskService().CloseTask(ctx, args[0], reason, repo); err != nil {
				return fmt.Errorf("failed to close task: %w", err)
			}
			fmt.Printf("%s Closed %s\n", okMark, args[0])

			// Closing a leaf may complete its ancestors.
			for _, id := range wire.RegroomService().RegroomAncestors(ctx, args[0], repo) {
				fmt.Printf("%s Auto-closed %s (all children closed)\n", okMark, id)
			}
			return nil
		},
	}

	cmd.Flags().String("reason", "", "why the task is being closed")
	addRepoFlag(cmd)
	return cmd
}

func taskRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback [task-id]",
		Short: "Move an active task back to its queued state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := wire.TaskService().RollbackActive(cmdContext(), args[0], repoPath(cmd))
			if err != nil {
				return fmt.Errorf("failed to roll back task: %w", err)
			}
			fmt.Printf("%s %s is now in state %s\n", okMark, task.ID, task.State)
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}
