// Package apk installs Alpine packages with apk.
package apk

import (
	"context"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
)

// Installer is the apk strategy
type Installer struct {
	tc *toolchain.Toolchain
}

// New creates the apk strategy.
func New(tc *toolchain.Toolchain) *Installer {
	return &Installer{tc: tc}
}

// Install implements installer.Strategy.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	tool, err := i.tc.Ensure(ctx, "apk-tools", "apk")
	if err != nil {
		return "", err
	}
	_, err = i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: tool, Args: []string{"add", "--allow-untrusted", artifact}})
	return "", err
}

// Remove implements installer.Remover.
func (i *Installer) Remove(ctx context.Context, pkg *models.Package) error {
	_, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: "apk", Args: []string{"del", pkg.Name}})
	return err
}
