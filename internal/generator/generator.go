// Package generator builds a repository index from a directory of package
// files: the packages are copied under packages/ and described in an
// index document that Sync can consume.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nexusos/nexuspkg/internal/inspect"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/scanner"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

const stage = "index"

// PackagesDir is the directory of the output holding the artifacts
const PackagesDir = "packages"

// IndexFile is the name of the index document in the output
const IndexFile = "index"

// Config describes one generation run
type Config struct {
	InputDir  string
	OutputDir string
	// BaseURL is the public URL of OutputDir. When empty, download URLs
	// are file:// URLs of the copied artifacts.
	BaseURL string
}

// Generator writes repository indexes
type Generator struct {
	scanner scanner.Scanner
}

// New creates a generator.
func New() *Generator {
	return &Generator{scanner: scanner.NewFileSystemScanner()}
}

// Generate scans cfg.InputDir and writes the repository to cfg.OutputDir.
// Files whose metadata cannot be read are skipped with a warning.
func (g *Generator) Generate(ctx context.Context, cfg Config) (*models.Index, error) {
	if cfg.InputDir == "" || cfg.OutputDir == "" {
		return nil, models.NewError(models.ErrInvalidInput, stage, "", "input and output directories are required")
	}

	logrus.Infof("Scanning directory: %s", cfg.InputDir)
	scanned, err := g.scanner.Scan(ctx, cfg.InputDir)
	if err != nil {
		return nil, models.WrapError(models.ErrIO, stage, "", err)
	}
	if len(scanned) == 0 {
		logrus.Warn("No packages found in input directory")
	}

	var pkgs []models.Package
	for _, s := range scanned {
		if s.Format.IsDelegate() {
			logrus.Warnf("Skipping %s: %s packages are installed by name", s.Path, s.Format)
			continue
		}
		logrus.Debugf("Inspecting %s package: %s", s.Format, s.Path)
		pkg, err := inspect.Inspect(s.Path, s.Format)
		if err != nil {
			logrus.Warnf("Failed to inspect %s: %v", s.Path, err)
			continue
		}
		pkg.DownloadURL = s.Path // replaced once copied
		pkgs = append(pkgs, *pkg)
	}

	for _, dup := range utils.DetectConflicts(pkgs) {
		logrus.Warnf("Duplicate package %s in %s, keeping the first", utils.PackageIdentity(dup), dup.DownloadURL)
	}
	pkgs = utils.Dedupe(pkgs)
	sort.Slice(pkgs, func(i, j int) bool {
		a, b := pkgs[i].Key(), pkgs[j].Key()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Format != b.Format {
			return a.Format < b.Format
		}
		return a.Architecture < b.Architecture
	})

	pkgDir := filepath.Join(cfg.OutputDir, PackagesDir)
	if err := utils.EnsureDir(pkgDir); err != nil {
		return nil, models.WrapError(models.ErrIO, stage, "", err)
	}

	index := &models.Index{Packages: make([]models.IndexEntry, 0, len(pkgs))}
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := artifactName(pkg)
		dst := filepath.Join(pkgDir, file)
		if err := utils.CopyFile(pkg.DownloadURL, dst, 0644); err != nil {
			return nil, models.WrapError(models.ErrIO, stage, pkg.Name, fmt.Errorf("failed to copy %s: %w", pkg.DownloadURL, err))
		}

		url, err := downloadURL(cfg, dst, file)
		if err != nil {
			return nil, models.WrapError(models.ErrIO, stage, pkg.Name, err)
		}
		index.Packages = append(index.Packages, models.IndexEntry{
			Name:         pkg.Name,
			Version:      pkg.Version,
			Description:  pkg.Description,
			DownloadURL:  url,
			Checksum:     pkg.Checksum,
			Size:         pkg.Size,
			Type:         int(pkg.Type),
			Dependencies: pkg.Dependencies,
			Format:       pkg.Format.String(),
			Architecture: pkg.Architecture,
		})
		logrus.Infof("Added %s %s (%s, %s)", pkg.Name, pkg.Version, pkg.Format, pkg.Architecture)
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, models.WrapError(models.ErrIO, stage, "", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, IndexFile), append(data, '\n'), 0644); err != nil {
		return nil, models.WrapError(models.ErrIO, stage, "", fmt.Errorf("failed to write index: %w", err))
	}

	logrus.Infof("Repository index generated with %d packages", len(index.Packages))
	return index, nil
}

// artifactName names the copied file after the record key so packages
// sharing a source file name do not collide.
func artifactName(pkg models.Package) string {
	ext := pkg.Format.Extension()
	if strings.HasSuffix(pkg.Name, ext) {
		ext = ""
	}
	return fmt.Sprintf("%s-%s-%s%s", pkg.Name, sanitize(pkg.Version), pkg.Architecture, ext)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, s)
}

func downloadURL(cfg Config, dst, file string) (string, error) {
	if cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/") + "/" + PackagesDir + "/" + file, nil
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}
