// Package installer dispatches package installs to per-format strategies
// and records the outcome in the package store.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nexusos/nexuspkg/internal/inspect"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/repo"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

// LocalRepo is the source_repo of packages installed from a local file
const LocalRepo = "local"

// Store is the part of the package store the dispatcher uses
type Store interface {
	Get(ctx context.Context, key models.Key) (*models.Package, error)
	FindByName(ctx context.Context, name, arch string) (*models.Package, error)
	Upsert(ctx context.Context, pkg *models.Package) error
	MarkInstalled(ctx context.Context, key models.Key, when time.Time, path string) error
	MarkRemoved(ctx context.Context, key models.Key) error
}

// Fetcher downloads and verifies artifacts
type Fetcher interface {
	Fetch(ctx context.Context, a repo.Artifact, timeout time.Duration) error
	FetchAll(ctx context.Context, artifacts []repo.Artifact, limit int, timeout time.Duration) []error
}

// Result describes a finished install
type Result struct {
	Package          *models.Package
	AlreadyInstalled bool
}

// Dispatcher runs installs and removals
type Dispatcher struct {
	cfg      *models.Config
	store    Store
	fetcher  Fetcher
	registry *Registry
	locks    *keyLocks
	now      func() time.Time
}

// New creates a dispatcher.
func New(cfg *models.Config, store Store, fetcher Fetcher, registry *Registry) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		registry: registry,
		locks:    newKeyLocks(),
		now:      time.Now,
	}
}

// plan is a looked-up record ready to be fetched and installed
type plan struct {
	pkg      *models.Package
	strategy Strategy
	artifact string // cache path, empty for delegate formats
}

// Install installs the catalog package name. Installing an installed
// package is a no-op that reports the installed record.
func (d *Dispatcher) Install(ctx context.Context, name string) (*Result, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, "install", name, err)
	}
	unlock := d.locks.Lock(name)
	defer unlock()

	p, done, err := d.prepare(ctx, name)
	if err != nil || done != nil {
		return done, err
	}

	if p.artifact != "" {
		if err := d.fetch(ctx, p); err != nil {
			return nil, err
		}
	}
	return d.complete(ctx, p)
}

// InstallAll installs every name. Artifacts are downloaded in parallel
// (bounded by ParallelDownloads); installs and store writes then run one
// at a time. Every package is attempted; the returned error joins the
// failures.
func (d *Dispatcher) InstallAll(ctx context.Context, names []string) ([]Result, error) {
	names = utils.UniqueNames(names)
	for _, n := range names {
		if err := models.ValidateName(n); err != nil {
			return nil, models.WrapError(models.ErrInvalidInput, "install", n, err)
		}
	}
	unlock := d.locks.LockAll(names)
	defer unlock()

	var (
		errs      []error
		results   []Result
		plans     []*plan
		artifacts []repo.Artifact
		fetchIdx  = make(map[int]int)
	)
	for _, n := range names {
		p, done, err := d.prepare(ctx, n)
		switch {
		case err != nil:
			errs = append(errs, err)
		case done != nil:
			results = append(results, *done)
		default:
			if p.artifact != "" {
				fetchIdx[len(plans)] = len(artifacts)
				artifacts = append(artifacts, d.artifact(p))
			}
			plans = append(plans, p)
		}
	}

	var fetchErrs []error
	if len(artifacts) > 0 {
		logrus.Infof("Downloading %d packages (%d at a time)", len(artifacts), d.cfg.ParallelDownloads)
		fetchErrs = d.fetcher.FetchAll(ctx, artifacts, d.cfg.ParallelDownloads, d.cfg.DownloadTimeout)
	}

	for i, p := range plans {
		if j, ok := fetchIdx[i]; ok && fetchErrs[j] != nil {
			errs = append(errs, fetchErrs[j])
			continue
		}
		res, err := d.complete(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, *res)
	}

	return results, errors.Join(errs...)
}

// InstallLocal installs target directly with the strategy of f, bypassing
// the catalog. target is a package file for archive-based formats and an
// ecosystem name for delegate formats (and for pip when no such file
// exists). The record is stored with source_repo "local".
func (d *Dispatcher) InstallLocal(ctx context.Context, f models.Format, target string) (*Result, error) {
	if target == "" {
		return nil, models.NewError(models.ErrInvalidInput, "install", "", "nothing to install")
	}
	strategy, err := d.strategyFor(f, target)
	if err != nil {
		return nil, err
	}

	var pkg *models.Package
	artifact := ""
	if f.IsDelegate() || (f == models.FormatWheel && !isFile(target)) {
		if err := models.ValidateName(target); err != nil {
			return nil, models.WrapError(models.ErrInvalidInput, "install", target, err)
		}
		pkg = &models.Package{Name: target, Version: inspect.LocalVersion, Format: f, Architecture: d.cfg.Architecture}
	} else {
		if !isFile(target) {
			return nil, models.NewError(models.ErrInvalidInput, "install", target, "no such package file")
		}
		pkg, err = inspect.Inspect(target, f)
		if err != nil {
			return nil, err
		}
		pkg.Format = f
		artifact = target
	}
	pkg.SourceRepo = LocalRepo

	if err := d.checkArch(pkg); err != nil {
		return nil, err
	}

	unlock := d.locks.Lock(pkg.Name)
	defer unlock()

	if existing, err := d.store.Get(ctx, pkg.Key()); err == nil && existing.Installed {
		logrus.Infof("%s %s is already installed", existing.Name, existing.Version)
		return &Result{Package: existing, AlreadyInstalled: true}, nil
	}

	path, err := d.runStrategy(ctx, strategy, pkg, artifact)
	if err != nil {
		return nil, err
	}

	pkg.Installed = true
	pkg.InstallTime = d.now()
	pkg.InstallPath = path
	if err := d.store.Upsert(ctx, pkg); err != nil {
		return nil, err
	}
	logrus.Infof("Installed %s %s (%s)", pkg.Name, pkg.Version, pkg.Format)
	return &Result{Package: pkg}, nil
}

// Remove uninstalls name. Strategies without a Remover only have their
// state cleared; the catalog record is kept.
func (d *Dispatcher) Remove(ctx context.Context, name string) (*models.Package, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, "remove", name, err)
	}
	unlock := d.locks.Lock(name)
	defer unlock()

	pkg, err := d.store.FindByName(ctx, name, d.cfg.Architecture)
	if err != nil {
		return nil, err
	}
	if !pkg.Installed {
		return nil, models.NewError(models.ErrNotFound, "remove", name, "package is not installed")
	}

	if s, ok := d.registry.Lookup(pkg.Format); ok {
		if r, ok := s.(Remover); ok {
			logrus.Infof("Removing %s (%s)", name, pkg.Format)
			if err := r.Remove(ctx, pkg); err != nil {
				return nil, models.WrapError(models.ErrTool, "remove", name, err)
			}
		} else {
			logrus.Warnf("No remover for %s packages, only clearing the installed state of %s", pkg.Format, name)
		}
	}

	if err := d.store.MarkRemoved(ctx, pkg.Key()); err != nil {
		return nil, err
	}
	pkg.Installed = false
	pkg.InstallTime = time.Time{}
	pkg.InstallPath = ""
	return pkg, nil
}

// CachePath returns where the artifact of pkg is downloaded to.
func (d *Dispatcher) CachePath(pkg *models.Package) string {
	return filepath.Join(d.cfg.CachePath, pkg.Name+pkg.Format.Extension())
}

// prepare looks name up and checks it can be installed. done is set when
// the package is already installed.
func (d *Dispatcher) prepare(ctx context.Context, name string) (*plan, *Result, error) {
	pkg, err := d.store.FindByName(ctx, name, d.cfg.Architecture)
	if err != nil {
		return nil, nil, err
	}
	if pkg.Installed {
		logrus.Infof("%s %s is already installed", pkg.Name, pkg.Version)
		return nil, &Result{Package: pkg, AlreadyInstalled: true}, nil
	}

	strategy, err := d.strategyFor(pkg.Format, name)
	if err != nil {
		return nil, nil, err
	}
	if err := d.checkArch(pkg); err != nil {
		return nil, nil, err
	}

	p := &plan{pkg: pkg, strategy: strategy}
	if !pkg.Format.IsDelegate() {
		if pkg.DownloadURL == "" {
			return nil, nil, models.NewError(models.ErrInvalidInput, "install", name, "record has no download URL")
		}
		p.artifact = d.CachePath(pkg)
	}
	return p, nil, nil
}

func (d *Dispatcher) artifact(p *plan) repo.Artifact {
	return repo.Artifact{
		Package:  p.pkg.Name,
		URL:      p.pkg.DownloadURL,
		Path:     p.artifact,
		Checksum: p.pkg.Checksum,
	}
}

func (d *Dispatcher) fetch(ctx context.Context, p *plan) error {
	return d.fetcher.Fetch(ctx, d.artifact(p), d.cfg.DownloadTimeout)
}

// complete runs the strategy and records the install. A failed install
// removes the downloaded artifact.
func (d *Dispatcher) complete(ctx context.Context, p *plan) (*Result, error) {
	path, err := d.runStrategy(ctx, p.strategy, p.pkg, p.artifact)
	if err != nil {
		if p.artifact != "" {
			os.Remove(p.artifact)
		}
		return nil, err
	}

	when := d.now()
	if err := d.store.MarkInstalled(ctx, p.pkg.Key(), when, path); err != nil {
		return nil, err
	}
	p.pkg.Installed = true
	p.pkg.InstallTime = when
	p.pkg.InstallPath = path

	logrus.Infof("Installed %s %s (%s)", p.pkg.Name, p.pkg.Version, p.pkg.Format)
	return &Result{Package: p.pkg}, nil
}

func (d *Dispatcher) runStrategy(ctx context.Context, s Strategy, pkg *models.Package, artifact string) (string, error) {
	if d.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ExtractTimeout)
		defer cancel()
	}

	logrus.Infof("Installing %s %s (%s)", pkg.Name, pkg.Version, pkg.Format)
	path, err := s.Install(ctx, pkg, artifact)
	if err != nil {
		return "", models.WrapError(models.ErrTool, "install", pkg.Name, err)
	}
	if path == "" {
		path = d.cfg.DefaultInstallPath
	}
	return path, nil
}

func (d *Dispatcher) strategyFor(f models.Format, name string) (Strategy, error) {
	if !d.cfg.FormatEnabled(f) {
		return nil, models.NewError(models.ErrIncompatible, "install", name, "%s support is disabled", f)
	}
	s, ok := d.registry.Lookup(f)
	if !ok {
		return nil, models.NewError(models.ErrIncompatible, "install", name, "no installer for %s packages", f)
	}
	return s, nil
}

var portableArches = map[string]bool{"any": true, "all": true, "noarch": true, "universal": true}

func (d *Dispatcher) checkArch(pkg *models.Package) error {
	arch := pkg.Key().Architecture
	if arch == d.cfg.Architecture || portableArches[arch] {
		return nil
	}
	return models.NewError(models.ErrIncompatible, "install", pkg.Name,
		"built for %s, this system is %s", arch, d.cfg.Architecture)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// String renders a result for logs.
func (r Result) String() string {
	if r.Package == nil {
		return ""
	}
	if r.AlreadyInstalled {
		return fmt.Sprintf("%s %s already installed", r.Package.Name, r.Package.Version)
	}
	return fmt.Sprintf("%s %s installed to %s", r.Package.Name, r.Package.Version, r.Package.InstallPath)
}
