// Package delegate hands installs to ecosystem and sandboxed-app tools
// (flatpak, snap, npm, cargo, docker, podman, nix, emerge, pip).
package delegate

import (
	"context"
	"path/filepath"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/sirupsen/logrus"
)

// Tool describes how one format is handed to its tool
type Tool struct {
	// Candidates are tried in order on PATH
	Candidates []string
	// Bootstrap is the system package providing the tool; empty disables it
	Bootstrap string
	// InstallArgs returns the install arguments for target, which is the
	// downloaded file when there is one and the package name otherwise
	InstallArgs func(target string) []string
	RemoveArgs  func(name string) []string
	// Setup runs once the tool is available, before installing
	Setup func(ctx context.Context, tc *toolchain.Toolchain, cfg *models.Config, tool string, bootstrapped bool)
	// Path reports where the tool puts name; nil means the default
	Path func(name string) string
}

func args(prefix ...string) func(string) []string {
	return func(target string) []string {
		return append(append([]string{}, prefix...), target)
	}
}

// Tools is the table of delegate formats. Wheel is archive-based: pip
// receives the downloaded file.
var Tools = map[models.Format]Tool{
	models.FormatFlatpak: {
		Candidates:  []string{"flatpak"},
		Bootstrap:   "flatpak",
		InstallArgs: args("install", "-y", "flathub"),
		RemoveArgs:  args("uninstall", "-y"),
		Setup:       addFlathub,
		Path:        func(name string) string { return filepath.Join("/var/lib/flatpak/app", name) },
	},
	models.FormatSnap: {
		Candidates:  []string{"snap"},
		Bootstrap:   "snapd",
		InstallArgs: args("install"),
		RemoveArgs:  args("remove"),
		Setup:       enableSnapd,
		Path:        func(name string) string { return filepath.Join("/snap", name) },
	},
	models.FormatNPM: {
		Candidates:  []string{"npm"},
		Bootstrap:   "npm",
		InstallArgs: args("install", "-g"),
		RemoveArgs:  args("uninstall", "-g"),
	},
	models.FormatCargo: {
		Candidates:  []string{"cargo"},
		Bootstrap:   "rust",
		InstallArgs: args("install"),
		RemoveArgs:  args("uninstall"),
	},
	models.FormatDocker: {
		Candidates:  []string{"docker"},
		Bootstrap:   "docker",
		InstallArgs: args("pull"),
		RemoveArgs:  args("rmi"),
	},
	models.FormatOCI: {
		Candidates:  []string{"podman"},
		Bootstrap:   "podman",
		InstallArgs: args("pull"),
		RemoveArgs:  args("rmi"),
	},
	models.FormatNix: {
		Candidates:  []string{"nix-env"},
		InstallArgs: func(name string) []string { return []string{"-iA", "nixpkgs." + name} },
		RemoveArgs:  args("-e"),
	},
	models.FormatEbuild: {
		Candidates:  []string{"emerge"},
		InstallArgs: args(),
		RemoveArgs:  args("--unmerge"),
	},
	models.FormatWheel: {
		Candidates:  []string{"pip", "pip3"},
		Bootstrap:   "python-pip",
		InstallArgs: args("install"),
		RemoveArgs:  args("uninstall", "-y"),
	},
}

// Installer runs one Tool
type Installer struct {
	format models.Format
	tool   Tool
	cfg    *models.Config
	tc     *toolchain.Toolchain
}

// New creates the strategy of f, which must be in Tools.
func New(f models.Format, cfg *models.Config, tc *toolchain.Toolchain) (*Installer, bool) {
	tool, ok := Tools[f]
	if !ok {
		return nil, false
	}
	return &Installer{format: f, tool: tool, cfg: cfg, tc: tc}, true
}

// Install implements installer.Strategy.
func (i *Installer) Install(ctx context.Context, pkg *models.Package, artifact string) (string, error) {
	_, present := i.tc.Find(i.tool.Candidates...)
	name, err := i.tc.Ensure(ctx, i.tool.Bootstrap, i.tool.Candidates...)
	if err != nil {
		return "", err
	}
	if i.tool.Setup != nil {
		i.tool.Setup(ctx, i.tc, i.cfg, name, !present)
	}

	target := pkg.Name
	if artifact != "" {
		target = artifact
	}
	if _, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: name, Args: i.tool.InstallArgs(target)}); err != nil {
		return "", err
	}

	if i.tool.Path != nil {
		return i.tool.Path(pkg.Name), nil
	}
	return "", nil
}

// Remove implements installer.Remover.
func (i *Installer) Remove(ctx context.Context, pkg *models.Package) error {
	name, ok := i.tc.Find(i.tool.Candidates...)
	if !ok {
		return models.NewError(models.ErrTool, "remove", pkg.Name, "%s is not available", i.tool.Candidates[0])
	}
	_, err := i.tc.Exec(ctx, pkg.Name, toolchain.Command{Name: name, Args: i.tool.RemoveArgs(pkg.Name)})
	return err
}

// addFlathub registers the Flathub remote. Failure is logged; the install
// itself reports a missing remote.
func addFlathub(ctx context.Context, tc *toolchain.Toolchain, cfg *models.Config, tool string, _ bool) {
	if cfg.FlatpakRemote == "" {
		return
	}
	cmd := toolchain.Command{Name: tool, Args: []string{"remote-add", "--if-not-exists", "flathub", cfg.FlatpakRemote}}
	if _, err := tc.Exec(ctx, "flathub", cmd); err != nil {
		logrus.Warnf("Cannot add flathub remote: %v", err)
	}
}

// enableSnapd starts the snapd socket after snapd was just installed.
func enableSnapd(ctx context.Context, tc *toolchain.Toolchain, _ *models.Config, _ string, bootstrapped bool) {
	if !bootstrapped {
		return
	}
	cmd := toolchain.Command{Name: "systemctl", Args: []string{"enable", "--now", "snapd.socket"}}
	if _, err := tc.Exec(ctx, "snapd", cmd); err != nil {
		logrus.Warnf("Cannot enable snapd.socket: %v", err)
	}
}
