// Package deb installs Debian packages with dpkg.
package deb

import (
	"context"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/sirupsen/logrus"
)

// InstallPath is reported for packages placed by dpkg
const InstallPath = "/usr"

// Installer is the deb strategy
type Installer struct {
	tc *toolchain.Toolchain
}

// New creates the deb strategy.
func New(tc *toolchain.Toolchain) *Installer {
	return &Installer{tc: tc}
}

// Install implements installer.Strategy. When dpkg fails (usually for
// missing dependencies) apt-get repairs the half-configured install; a
// successful repair completes it.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	return InstallFiles(ctx, i.tc, pkg.Name, artifact)
}

// InstallFiles runs dpkg -i on files with the apt-get repair fallback.
func InstallFiles(ctx context.Context, tc *toolchain.Toolchain, name string, files ...string) (string, error) {
	dpkg, err := tc.Ensure(ctx, "dpkg", "dpkg")
	if err != nil {
		return "", err
	}

	args := append([]string{"-i"}, files...)
	if _, err := tc.Exec(ctx, name, toolchain.Command{Name: dpkg, Args: args}); err != nil {
		logrus.Warnf("dpkg failed for %s, attempting dependency repair: %v", name, err)
		if _, rerr := tc.Exec(ctx, name, toolchain.Command{Name: "apt-get", Args: []string{"install", "-f", "-y"}}); rerr != nil {
			return "", rerr
		}
	}
	return InstallPath, nil
}

// Remove implements installer.Remover.
func (i *Installer) Remove(ctx context.Context, pkg *models.Package) error {
	_, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: "dpkg", Args: []string{"-r", pkg.Name}})
	return err
}
