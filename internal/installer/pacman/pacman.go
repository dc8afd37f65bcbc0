// Package pacman installs Arch packages (.pkg.tar.zst, .pkg.tar.xz).
package pacman

import (
	"context"

	"github.com/nexusos/nexuspkg/internal/extract"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/sirupsen/logrus"
)

// metadata members of a pacman package that are not part of the payload
var metadata = map[string]bool{
	".PKGINFO":   true,
	".MTREE":     true,
	".BUILDINFO": true,
	".INSTALL":   true,
	".CHANGELOG": true,
}

// Installer is the pacman strategy
type Installer struct {
	cfg *models.Config
	tc  *toolchain.Toolchain
}

// New creates the pacman strategy.
func New(cfg *models.Config, tc *toolchain.Toolchain) *Installer {
	return &Installer{cfg: cfg, tc: tc}
}

// Install implements installer.Strategy. Without pacman the payload is
// unpacked straight into the root filesystem.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	if i.tc.Has("pacman") {
		_, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: "pacman", Args: []string{"-U", "--noconfirm", artifact}})
		return "", err
	}

	logrus.Infof("pacman not available, extracting %s into %s", pkg.Name, i.cfg.RootDir)
	opts := extract.Options{Skip: func(name string) bool { return metadata[name] }}
	if err := extract.ExtractWithOptions(ctx, artifact, i.cfg.RootDir, opts); err != nil {
		return "", models.WrapError(models.ErrExtraction, "extract", pkg.Name, err)
	}
	return i.cfg.RootDir, nil
}

// Remove implements installer.Remover.
func (i *Installer) Remove(ctx context.Context, pkg *models.Package) error {
	if !i.tc.Has("pacman") {
		logrus.Warnf("pacman not available, files of %s are left in place", pkg.Name)
		return nil
	}
	_, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: "pacman", Args: []string{"-R", "--noconfirm", pkg.Name}})
	return err
}
