package cli

import (
	"fmt"

	"github.com/nexusos/nexuspkg/internal/generator"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	var cfg generator.Config

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Generate a repository index",
		Long: `Scans input directory for package files, copies them under
<output-dir>/packages and writes <output-dir>/index, a repository that
"nexuspkg sync" can consume when served at base-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.InputDir == "" || cfg.OutputDir == "" {
				return models.NewError(models.ErrInvalidInput, "index", "", "input-dir and output-dir are required")
			}

			logrus.Info("Starting index generation...")
			logrus.Debugf("Configuration: %+v", cfg)

			index, err := generator.New().Generate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d packages in %s\n", successStyle.Render("Indexed"), len(index.Packages), cfg.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.InputDir, "input-dir", "i", ".", "Input directory to scan")
	cmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", "./repo", "Output directory")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "", "Public URL of the output directory")

	return cmd
}
