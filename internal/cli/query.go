package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nexusos/nexuspkg/internal/config"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search the catalog by name or description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			pkgs, err := a.store.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(pkgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No packages found"))
				return nil
			}

			rows := make([][]string, 0, len(pkgs))
			for _, p := range pkgs {
				rows = append(rows, []string{p.Name, p.Version, p.Format.String(), p.Key().Architecture, yesNo(p.Installed), p.Description})
			}
			renderTable(cmd.OutOrStdout(), []string{"Name", "Version", "Format", "Arch", "Installed", "Description"}, rows)
			return nil
		},
	}
}

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			pkgs, err := a.store.ListInstalled(cmd.Context())
			if err != nil {
				return err
			}
			if len(pkgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No packages installed"))
				return nil
			}

			rows := make([][]string, 0, len(pkgs))
			for _, p := range pkgs {
				rows = append(rows, []string{p.Name, p.Version, p.Format.String(), p.InstallPath, p.InstallTime.Format(time.DateTime)})
			}
			renderTable(cmd.OutOrStdout(), []string{"Name", "Version", "Format", "Path", "Installed"}, rows)
			return nil
		},
	}
}

// NewInfoCmd creates the info command
func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show the record of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.store.FindByName(cmd.Context(), args[0], a.cfg.Architecture)
			if err != nil {
				return err
			}

			fields := [][2]string{
				{"Name", p.Name},
				{"Version", p.Version},
				{"Description", p.Description},
				{"Type", p.Type.String()},
				{"Format", p.Format.String()},
				{"Architecture", p.Key().Architecture},
				{"Size", humanize.Bytes(p.Size)},
				{"Checksum", p.Checksum},
				{"Download URL", p.DownloadURL},
				{"Repository", p.SourceRepo},
				{"Dependencies", strings.Join(p.Dependencies, ", ")},
				{"Installed", yesNo(p.Installed)},
			}
			if p.Installed {
				fields = append(fields,
					[2]string{"Installed at", p.InstallTime.Format(time.RFC3339)},
					[2]string{"Install path", p.InstallPath})
			}
			renderFields(cmd.OutOrStdout(), fields)
			return nil
		},
	}
}

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, format support and repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			installed, err := a.store.ListInstalled(ctx)
			if err != nil {
				return err
			}
			cfg := a.cfg
			fmt.Fprintln(out, titleStyle.Render("Configuration"))
			renderFields(out, [][2]string{
				{"Repository", cfg.RepoURL},
				{"AI models", cfg.AIModelsRepo},
				{"Database", cfg.DBPath},
				{"Cache", cfg.CachePath},
				{"Root", cfg.RootDir},
				{"Architecture", cfg.Architecture},
				{"Downloads", strconv.Itoa(cfg.ParallelDownloads) + " parallel"},
				{"Bootstrap", strings.Join(cfg.BootstrapCommand, " ")},
				{"Installed", strconv.Itoa(len(installed)) + " packages"},
			})

			fmt.Fprintln(out)
			fmt.Fprintln(out, titleStyle.Render("Formats"))
			rows := make([][]string, 0, len(config.Switches))
			for _, f := range models.AllFormats() {
				for key, sf := range config.Switches {
					if sf == f {
						rows = append(rows, []string{f.String(), key, yesNo(cfg.FormatEnabled(f))})
					}
				}
			}
			renderTable(out, []string{"Format", "Switch", "Enabled"}, rows)

			repos, err := a.store.Repos(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, titleStyle.Render("Repositories"))
			if len(repos) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("Never synced"))
				return nil
			}
			rows = rows[:0]
			for _, r := range repos {
				rows = append(rows, []string{r.URL, humanize.Time(r.LastSync), strconv.Itoa(r.PackageCount)})
			}
			renderTable(out, []string{"URL", "Last sync", "Packages"}, rows)
			return nil
		},
	}
}
