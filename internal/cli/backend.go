package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/loom/internal/wire"
)

// BackendCmd returns the backend command
func BackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Inspect tracker backend routing",
	}

	cmd.AddCommand(backendShowCmd())
	cmd.AddCommand(backendClearCacheCmd())

	return cmd
}

func backendShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show which backend serves the repository and its capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := repoPath(cmd)
			info, err := wire.BackendInfoService().Describe(cmdContext(), repo)
			if err != nil {
				return fmt.Errorf("failed to describe backend: %w", err)
			}

			fmt.Printf("Backend: %s\n", info.Name)
			fmt.Printf("Repo:    %s\n", info.RepoPath)
			fmt.Println("Capabilities:")

			names := make([]string, 0, len(info.Capabilities))
			for name := range info.Capabilities {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				mark := color.New(color.FgHiBlack).Sprint("-")
				if info.Capabilities[name] {
					mark = okMark
				}
				fmt.Printf("  %s %s\n", mark, name)
			}
			return nil
		},
	}
	addRepoFlag(cmd)
	return cmd
}

func backendClearCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Invalidate cached backend resolutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all {
				wire.BackendInfoService().ClearCache("")
				fmt.Println("Cleared all cached backend resolutions.")
				return nil
			}
			repo := repoPath(cmd)
			wire.BackendInfoService().ClearCache(repo)
			fmt.Printf("Cleared cached backend resolution for %s.\n", repo)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "clear every cached resolution")
	addRepoFlag(cmd)
	return cmd
}
