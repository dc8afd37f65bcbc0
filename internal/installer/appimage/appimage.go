// Package appimage places portable self-contained executables: AppImages
// under the applications directory with a launcher symlink, and plain
// binaries in the bin directory.
package appimage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

// Installer is the AppImage strategy
type Installer struct {
	cfg *models.Config
}

// New creates the AppImage strategy.
func New(cfg *models.Config) *Installer {
	return &Installer{cfg: cfg}
}

func (i *Installer) imagePath(pkg *models.Package) string {
	return filepath.Join(i.cfg.AppsDir, pkg.Name+models.FormatAppImage.Extension())
}

func (i *Installer) launcherPath(pkg *models.Package) string {
	return filepath.Join(i.cfg.BinDir, pkg.Name)
}

// Install implements installer.Strategy.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	image := i.imagePath(pkg)
	if err := utils.CopyFile(artifact, image, 0755); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, fmt.Errorf("place AppImage: %w", err))
	}

	launcher := i.launcherPath(pkg)
	if err := os.MkdirAll(i.cfg.BinDir, 0755); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, err)
	}
	os.Remove(launcher)
	if err := os.Symlink(image, launcher); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, fmt.Errorf("create launcher: %w", err))
	}

	logrus.Debugf("Placed %s with launcher %s", image, launcher)
	return image, nil
}

// Remove implements installer.Remover. The launcher is only removed when
// it still points at the image.
func (i *Installer) Remove(ctx context.Context, pkg *models.Package) error {
	image := i.imagePath(pkg)
	launcher := i.launcherPath(pkg)
	if target, err := os.Readlink(launcher); err == nil && target == image {
		os.Remove(launcher)
	}
	if err := os.Remove(image); err != nil && !os.IsNotExist(err) {
		return models.WrapError(models.ErrIO, "remove", pkg.Name, err)
	}
	return nil
}

// Binary is the strategy of standalone executables
type Binary struct {
	cfg *models.Config
}

// NewBinary creates the binary strategy.
func NewBinary(cfg *models.Config) *Binary {
	return &Binary{cfg: cfg}
}

// Install implements installer.Strategy.
func (b *Binary) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	dest := filepath.Join(b.cfg.BinDir, pkg.Name)
	if err := utils.CopyFile(artifact, dest, 0755); err != nil {
		return "", models.WrapError(models.ErrIO, "install", pkg.Name, err)
	}
	return dest, nil
}

// Remove implements installer.Remover.
func (b *Binary) Remove(ctx context.Context, pkg *models.Package) error {
	err := os.Remove(filepath.Join(b.cfg.BinDir, pkg.Name))
	if err != nil && !os.IsNotExist(err) {
		return models.WrapError(models.ErrIO, "remove", pkg.Name, err)
	}
	return nil
}
