package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/loom/internal/config"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize loom in the current repository",
		Long: `Create the .loom directory with a default config.json. The .loom
marker also routes this repository to the local SQLite backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _ := cmd.Flags().GetString("backend")
			repo := repoPath(cmd)

			cfg := config.Default()
			if backend != "" {
				cfg.DefaultBackend = backend
			}
			if err := config.SaveConfig(repo, cfg); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			fmt.Printf("%s Initialized loom in %s\n", okMark, repo)
			fmt.Printf("  Default backend: %s\n", cfg.DefaultBackend)
			return nil
		},
	}

	cmd.Flags().String("backend", "", "default backend (local, knot, memory)")
	addRepoFlag(cmd)
	return cmd
}
