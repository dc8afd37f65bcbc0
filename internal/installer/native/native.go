// Package native installs generic archives (native .npkg, tar, tar.gz,
// tar.xz, zip): the archive is unpacked into a scratch directory, then its
// install.sh runs or the tree is copied into the root filesystem.
package native

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexusos/nexuspkg/internal/extract"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

// InstallScript is run, when present and executable, instead of the copy
const InstallScript = "install.sh"

// ScratchPrefix names the per-package extraction directory
const ScratchPrefix = "nexuspkg-install-"

// Installer is the archive strategy
type Installer struct {
	cfg *models.Config
	tc  *toolchain.Toolchain
}

// New creates the archive strategy.
func New(cfg *models.Config, tc *toolchain.Toolchain) *Installer {
	return &Installer{cfg: cfg, tc: tc}
}

// ScratchDir returns the extraction directory of pkg.
func (i *Installer) ScratchDir(pkg *models.Package) string {
	return filepath.Join(i.cfg.ScratchDir, ScratchPrefix+pkg.Name)
}

// Install implements installer.Strategy.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	scratch := i.ScratchDir(pkg)
	if err := os.RemoveAll(scratch); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logrus.Warnf("Cannot remove scratch directory %s: %v", scratch, err)
		}
	}()

	logrus.Debugf("Extracting %s to %s", artifact, scratch)
	if err := extract.Extract(ctx, artifact, scratch); err != nil {
		return "", models.WrapError(models.ErrExtraction, "extract", pkg.Name, err)
	}

	script := filepath.Join(scratch, InstallScript)
	if info, err := os.Lstat(script); err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0 {
		logrus.Infof("Running %s of %s", InstallScript, pkg.Name)
		_, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{
			Name: script,
			Dir:  scratch,
			Env: []string{
				"NEXUSPKG_ROOT=" + i.cfg.RootDir,
				"NEXUSPKG_PACKAGE=" + pkg.Name,
				"NEXUSPKG_VERSION=" + pkg.Version,
			},
		})
		if err != nil {
			return "", err
		}
		return "", nil
	}

	logrus.Debugf("Copying %s into %s", scratch, i.cfg.RootDir)
	if err := utils.CopyTree(scratch, i.cfg.RootDir); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, fmt.Errorf("copy to %s: %w", i.cfg.RootDir, err))
	}
	return i.cfg.RootDir, nil
}
