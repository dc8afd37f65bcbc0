package cli

import (
	"github.com/nexusos/nexuspkg/internal/config"
	"github.com/nexusos/nexuspkg/internal/installer"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/repo"
	"github.com/nexusos/nexuspkg/internal/store"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newRunner creates the process runner used by installs
var newRunner = func() toolchain.Runner { return toolchain.ExecRunner{} }

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nexuspkg",
		Short: "Universal package manager",
		Long: `NexusPkg installs software from a NexusPkg repository and from
local package files of many ecosystems.

Supported package formats:
  - native .npkg, tar, tar.gz, tar.xz and zip archives
  - Debian (.deb), RPM (.rpm), Arch (.pkg.tar.zst), Alpine (.apk)
  - AppImage and standalone binaries
  - Flatpak, Snap, pip, npm, cargo, Docker/OCI, Nix and ebuild (through their tools)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().String("db", "", "Package database path")
	rootCmd.PersistentFlags().String("cache", "", "Download cache directory")
	rootCmd.PersistentFlags().String("root", "", "Root filesystem archives are installed into")

	// Add subcommands
	rootCmd.AddCommand(
		NewSyncCmd(),
		NewModelsCmd(),
		NewSearchCmd(),
		NewListCmd(),
		NewInfoCmd(),
		NewStatusCmd(),
		NewInstallCmd(),
		NewRemoveCmd(),
		NewCleanCmd(),
		NewIndexCmd(),
	)
	rootCmd.AddCommand(NewFormatCmds()...)

	return rootCmd
}

// app is the engine wired for one command invocation
type app struct {
	cfg        *models.Config
	store      *store.Store
	client     *repo.Client
	syncer     *repo.Syncer
	dispatcher *installer.Dispatcher
}

func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

// openApp loads the configuration and opens the package store. The caller
// closes the app.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cmd.Context(), cfg.DBPath)
	if err != nil {
		return nil, err
	}

	client := repo.NewClient(cfg)
	tc := toolchain.New(newRunner(), cfg.BootstrapCommand)
	return &app{
		cfg:        cfg,
		store:      st,
		client:     client,
		syncer:     repo.NewSyncer(client, st, cfg),
		dispatcher: installer.New(cfg, st, client, installer.DefaultRegistry(cfg, tc)),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logrus.Warnf("Failed to close package store: %v", err)
	}
}
