// Package rpm installs RPM packages, natively with rpm or by converting
// them to .deb with alien.
package rpm

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nexusos/nexuspkg/internal/installer/deb"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/sirupsen/logrus"
)

// Installer is the rpm strategy
type Installer struct {
	cfg *models.Config
	tc  *toolchain.Toolchain
}

// New creates the rpm strategy.
func New(cfg *models.Config, tc *toolchain.Toolchain) *Installer {
	return &Installer{cfg: cfg, tc: tc}
}

// Install implements installer.Strategy.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	if i.tc.Has("rpm") {
		if _, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: "rpm", Args: []string{"-i", artifact}}); err != nil {
			return "", err
		}
		return deb.InstallPath, nil
	}

	alien, err := i.tc.Ensure(ctx, "alien", "alien")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(i.cfg.ScratchDir, 0755); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, err)
	}
	work, err := os.MkdirTemp(i.cfg.ScratchDir, "nexuspkg-alien-")
	if err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, err)
	}
	defer os.RemoveAll(work)

	abs, err := filepath.Abs(artifact)
	if err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, err)
	}
	logrus.Infof("Converting %s to deb with alien", pkg.Name)
	if _, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: alien, Args: []string{"-d", abs}, Dir: work}); err != nil {
		return "", err
	}

	debs, _ := filepath.Glob(filepath.Join(work, "*.deb"))
	if len(debs) == 0 {
		return "", models.NewError(models.ErrTool, "install", pkg.Name, "alien produced no .deb")
	}
	return deb.InstallFiles(ctx, i.tc, pkg.Name, debs...)
}

// Remove implements installer.Remover.
func (i *Installer) Remove(ctx context.Context, pkg *models.Package) error {
	cmd := toolchain.Command{Name: "rpm", Args: []string{"-e", pkg.Name}}
	if !i.tc.Has("rpm") {
		cmd = toolchain.Command{Name: "dpkg", Args: []string{"-r", pkg.Name}}
	}
	_, err := i.tc.Exec(ctx, pkg.Name, cmd)
	return err
}
