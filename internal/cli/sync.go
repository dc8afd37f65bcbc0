package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [repository-url]",
		Short: "Refresh the package catalog from a repository",
		Long: `Downloads the index of the repository (repo_url by default) and
replaces the catalog of packages that are not installed. Installed
packages are kept even when the repository no longer lists them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			url := a.cfg.RepoURL
			if len(args) == 1 {
				url = args[0]
			}
			return runSync(cmd, a, url)
		},
	}
}

// NewModelsCmd creates the models command group
func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "AI model repository",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Refresh the catalog from the AI model repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runSync(cmd, a, a.cfg.AIModelsRepo)
		},
	})
	return cmd
}

func runSync(cmd *cobra.Command, a *app, url string) error {
	n, err := a.syncer.Sync(cmd.Context(), url)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d packages from %s\n", successStyle.Render("Synced"), n, url)
	return nil
}
