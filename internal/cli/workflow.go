package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/wire"
)

// WorkflowCmd returns the workflow command
func WorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect configured workflows",
	}

	cmd.AddCommand(workflowListCmd())
	cmd.AddCommand(workflowStateCmd())

	return cmd
}

func workflowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflow descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range wire.Workflows() {
				fmt.Printf("%s:\n", d.ID)
				fmt.Printf("  steps:    %s\n", strings.Join(d.States, " → "))
				fmt.Printf("  terminal: %s\n", strings.Join(d.TerminalStates, ", "))
				for step, owner := range d.Owners {
					fmt.Printf("  owner:    %s → %s\n", step, owner)
				}
			}
			return nil
		},
	}
}

func workflowStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state [state-name]",
		Short: "Explain a workflow state name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, _ := cmd.Flags().GetString("workflow")
			desc := workflow.FindDescriptor(wire.Workflows(), workflowID)
			if desc == nil {
				return fmt.Errorf("no workflow %q configured", workflowID)
			}

			state := args[0]
			switch {
			case workflow.IsTerminal(desc, state):
				fmt.Printf("%s: terminal state\n", state)
			case state == workflow.StateDeferred:
				fmt.Printf("%s: hold state (no step, not terminal)\n", state)
			default:
				ref := workflow.ResolveStep(desc, state)
				if ref == nil {
					return fmt.Errorf("%q is not a state of workflow %q", state, desc.ID)
				}
				fmt.Printf("%s: step %q, %s phase\n", state, ref.Step, ref.Phase)
				rs := workflow.DeriveRuntimeState(desc, state)
				if rs.IsAgentClaimable {
					fmt.Println("  agent-claimable")
				}
				if rs.RequiresHumanAction {
					fmt.Println("  requires human action")
				}
				if rs.NextActionState != "" {
					fmt.Printf("  next action moves it to %q\n", rs.NextActionState)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("workflow", "default", "workflow descriptor to resolve against")
	return cmd
}
