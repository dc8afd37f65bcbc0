package cli

import (
	"fmt"
	"io"

	"github.com/nexusos/nexuspkg/internal/installer"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command
func NewInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <name>...",
		Short: "Install packages from the catalog",
		Long: `Installs packages by name from the synced catalog. Several names
are downloaded in parallel (parallel_downloads at a time) and installed
one after the other; every package is attempted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				res, err := a.dispatcher.Install(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), *res)
				return nil
			}

			results, err := a.dispatcher.InstallAll(cmd.Context(), args)
			for _, res := range results {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
}

// NewRemoveCmd creates the remove command
func NewRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"uninstall"},
		Short:   "Remove an installed package",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			pkg, err := a.dispatcher.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", successStyle.Render("Removed"), pkg.Name, pkg.Version)
			return nil
		},
	}
}

// formatCommand is one format-qualified command group
type formatCommand struct {
	use     string
	aliases []string
	format  models.Format
	short   string
	target  string
}

var formatCommands = []formatCommand{
	{"deb", nil, models.FormatDeb, "Debian packages", "file"},
	{"rpm", nil, models.FormatRPM, "RPM packages", "file"},
	{"zst", []string{"arch", "pacman"}, models.FormatZst, "Arch Linux packages", "file"},
	{"apk", []string{"alpine"}, models.FormatAPK, "Alpine packages", "file"},
	{"appimage", nil, models.FormatAppImage, "AppImages", "file"},
	{"flatpak", nil, models.FormatFlatpak, "Flatpak applications", "name"},
	{"snap", nil, models.FormatSnap, "Snap packages", "name"},
	{"pip", []string{"wheel"}, models.FormatWheel, "Python packages", "file|name"},
	{"npm", nil, models.FormatNPM, "npm packages", "name"},
	{"cargo", nil, models.FormatCargo, "Rust crates", "name"},
}

// NewFormatCmds creates the format-qualified commands ("deb install
// ./hello.deb", "flatpak install org.gnome.Calculator").
func NewFormatCmds() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(formatCommands))
	for _, fc := range formatCommands {
		fc := fc
		group := &cobra.Command{
			Use:     fc.use,
			Aliases: fc.aliases,
			Short:   fc.short,
		}
		group.AddCommand(&cobra.Command{
			Use:   fmt.Sprintf("install <%s>", fc.target),
			Short: fmt.Sprintf("Install %s directly", fc.short),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				res, err := a.dispatcher.InstallLocal(cmd.Context(), fc.format, args[0])
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), *res)
				return nil
			},
		})
		cmds = append(cmds, group)
	}
	return cmds
}

func printResult(w io.Writer, res installer.Result) {
	if res.AlreadyInstalled {
		fmt.Fprintf(w, "%s %s\n", warningStyle.Render("Skipped"), res)
		return
	}
	fmt.Fprintf(w, "%s %s\n", successStyle.Render("Installed"), res)
}
