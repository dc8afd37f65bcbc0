// Package inspect reads package metadata out of local package files.
package inspect

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/scanner"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

// LocalVersion is reported for files that carry no version metadata
const LocalVersion = "local"

// Inspect builds a package record for the file at path. The format is
// detected when f is FormatNative and the file says otherwise. Name,
// version and architecture come from the package metadata when the
// format has any, else from the file name.
func Inspect(path string, f models.Format) (*models.Package, error) {
	if f == models.FormatNative {
		detected, err := scanner.DetectFile(path)
		if err != nil {
			return nil, models.WrapError(models.ErrIO, "inspect", "", err)
		}
		f = detected
	}

	sums, err := utils.CalculateChecksums(path)
	if err != nil {
		return nil, models.WrapError(models.ErrIO, "inspect", "", fmt.Errorf("failed to calculate checksums: %w", err))
	}

	var meta *models.Package
	switch f {
	case models.FormatDeb:
		meta, err = parseDeb(path)
	case models.FormatRPM:
		meta, err = parseRPM(path)
	case models.FormatZst, models.FormatAPK:
		meta, err = parsePKGINFOFile(path)
	default:
		meta = &models.Package{}
	}
	if err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, "inspect", filepath.Base(path), err)
	}

	pkg := meta
	pkg.Format = f
	pkg.Size = uint64(sums.Size)
	pkg.Checksum = sums.SHA256
	pkg.DownloadURL = "file://" + absPath(path)
	if pkg.Name == "" {
		pkg.Name = NameFromFile(path, f)
	}
	if pkg.Version == "" {
		pkg.Version = LocalVersion
	}
	pkg.Architecture = NormalizeArch(pkg.Architecture)

	if err := models.ValidateName(pkg.Name); err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, "inspect", pkg.Name, err)
	}
	logrus.Debugf("Inspected %s: %s %s (%s, %s)", path, pkg.Name, pkg.Version, pkg.Format, pkg.Architecture)
	return pkg, nil
}

// NameFromFile derives a package name from a file name by removing the
// format extension.
func NameFromFile(path string, f models.Format) string {
	base := filepath.Base(path)
	for _, ext := range []string{f.Extension(), ".pkg.tar.xz", ".tgz"} {
		if ext != "" && strings.HasSuffix(base, ext) && len(base) > len(ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	if ext := filepath.Ext(base); ext != "" && len(base) > len(ext) {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

var archAliases = map[string]string{
	"amd64":   "x86_64",
	"x86-64":  "x86_64",
	"arm64":   "aarch64",
	"armhf":   "armv7h",
	"i386":    "i686",
	"ppc64el": "ppc64le",
}

// NormalizeArch maps distribution architecture names onto the target
// triple names used by records. Empty maps to the default architecture.
func NormalizeArch(arch string) string {
	arch = strings.TrimSpace(arch)
	if arch == "" {
		return models.DefaultArchitecture
	}
	if alias, ok := archAliases[arch]; ok {
		return alias
	}
	return arch
}

// dependencyName strips version constraints and alternatives from a
// dependency expression ("libc6 (>= 2.34) | libc", "glibc>=2.38").
func dependencyName(dep string) string {
	if i := strings.Index(dep, "|"); i >= 0 {
		dep = dep[:i]
	}
	if i := strings.IndexAny(dep, " (<>=:"); i >= 0 {
		dep = dep[:i]
	}
	return strings.TrimSpace(dep)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
