package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/scanner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewCleanCmd creates the clean command
func NewCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove downloaded package files from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			removed, freed, err := cleanCache(cmd, cfg.CachePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d files (%s)\n", successStyle.Render("Removed"), removed, humanize.Bytes(freed))
			return nil
		},
	}
}

// cleanCache deletes the downloaded artifacts of the cache directory,
// recognized by their package suffix. Other files and subdirectories are
// left alone.
func cleanCache(cmd *cobra.Command, dir string) (int, uint64, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, models.WrapError(models.ErrIO, "clean", "", err)
	}

	var (
		removed int
		freed   uint64
	)
	for _, e := range entries {
		if err := cmd.Context().Err(); err != nil {
			return removed, freed, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, ok := cachedFormat(e.Name())
		if !ok {
			logrus.Debugf("Keeping unrecognized file %s", path)
			continue
		}
		logrus.Debugf("Removing cached %s artifact %s", f, path)
		if err := os.Remove(path); err != nil {
			logrus.Warnf("Failed to remove %s: %v", path, err)
			continue
		}
		removed++
		freed += uint64(info.Size())
	}
	return removed, freed, nil
}

// cachedFormat reports the format of a cache entry named after
// Format.Extension, including the generic ".pkg" of binary artifacts.
func cachedFormat(name string) (models.Format, bool) {
	if f, ok := scanner.DetectName(name); ok {
		return f, true
	}
	if strings.HasSuffix(name, models.FormatBinary.Extension()) {
		return models.FormatBinary, true
	}
	return models.FormatNative, false
}
