// Package store persists package records and repository bookkeeping in a
// single SQLite database file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const stage = "store"

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	download_url TEXT NOT NULL DEFAULT '',
	checksum TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	package_type INTEGER NOT NULL DEFAULT 0,
	format TEXT NOT NULL,
	source_repo TEXT NOT NULL DEFAULT '',
	architecture TEXT NOT NULL,
	dependencies TEXT NOT NULL DEFAULT '',
	installed INTEGER NOT NULL DEFAULT 0,
	install_time INTEGER NOT NULL DEFAULT 0,
	install_path TEXT NOT NULL DEFAULT '',
	UNIQUE(name, format, architecture)
);
CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(name);

CREATE TABLE IF NOT EXISTS repo_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_url TEXT NOT NULL UNIQUE,
	last_sync INTEGER NOT NULL,
	package_count INTEGER NOT NULL
);
`

const columns = `name, version, description, download_url, checksum, size, package_type,
	format, source_repo, architecture, dependencies, installed, install_time, install_path`

// Catalog columns are refreshed by a sync; installation state is only
// written by an install or remove.
const upsertCatalog = `INSERT INTO packages (` + columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '')
ON CONFLICT(name, format, architecture) DO UPDATE SET
	version = excluded.version,
	description = excluded.description,
	download_url = excluded.download_url,
	checksum = excluded.checksum,
	size = excluded.size,
	package_type = excluded.package_type,
	source_repo = excluded.source_repo,
	dependencies = excluded.dependencies`

const upsertFull = `INSERT INTO packages (` + columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name, format, architecture) DO UPDATE SET
	version = excluded.version,
	description = excluded.description,
	download_url = excluded.download_url,
	checksum = excluded.checksum,
	size = excluded.size,
	package_type = excluded.package_type,
	source_repo = excluded.source_repo,
	dependencies = excluded.dependencies,
	installed = excluded.installed,
	install_time = excluded.install_time,
	install_path = excluded.install_path`

// RepoInfo is the bookkeeping row of a synced repository.
type RepoInfo struct {
	URL          string
	LastSync     time.Time
	PackageCount int
}

// Store is the package store. It holds one shared connection; every
// multi-statement write runs in its own transaction.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, models.NewError(models.ErrInvalidInput, stage, "", "database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, models.WrapError(models.ErrStore, stage, "", fmt.Errorf("create database directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, models.WrapError(models.ErrStore, stage, "", fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, models.WrapError(models.ErrStore, stage, "", fmt.Errorf("apply schema: %w", err))
	}

	logrus.Debugf("Opened package store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Upsert inserts or replaces a record, including its installation state.
func (s *Store) Upsert(ctx context.Context, pkg *models.Package) error {
	if err := models.ValidateName(pkg.Name); err != nil {
		return models.WrapError(models.ErrInvalidInput, stage, pkg.Name, err)
	}
	if pkg.Installed && pkg.InstallTime.IsZero() {
		return models.NewError(models.ErrInvalidInput, stage, pkg.Name, "installed record needs an install time")
	}

	k := pkg.Key()
	_, err := s.db.ExecContext(ctx, upsertFull,
		k.Name, pkg.Version, pkg.Description, pkg.DownloadURL, pkg.Checksum,
		int64(pkg.Size), int(pkg.Type), k.Format.String(), pkg.SourceRepo, k.Architecture,
		models.JoinDependencies(pkg.Dependencies),
		boolToInt(pkg.Installed), unixOrZero(pkg.InstallTime), pkg.InstallPath)
	if err != nil {
		return models.WrapError(models.ErrStore, stage, pkg.Name, fmt.Errorf("upsert: %w", err))
	}
	return nil
}

// Get returns the record with the given key.
func (s *Store) Get(ctx context.Context, key models.Key) (*models.Package, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM packages WHERE name = ? AND format = ? AND architecture = ?`,
		key.Name, key.Format.String(), key.Architecture)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewError(models.ErrNotFound, stage, key.Name, "no record for %s", key)
	}
	if err != nil {
		return nil, models.WrapError(models.ErrStore, stage, key.Name, err)
	}
	return pkg, nil
}

// FindByName returns the best record for name: an installed one first,
// then one built for arch, then the first declared.
func (s *Store) FindByName(ctx context.Context, name, arch string) (*models.Package, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM packages WHERE name = ?
		ORDER BY installed DESC, (architecture = ?) DESC, id ASC LIMIT 1`, name, arch)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewError(models.ErrNotFound, stage, name, "package not found")
	}
	if err != nil {
		return nil, models.WrapError(models.ErrStore, stage, name, err)
	}
	return pkg, nil
}

// ListInstalled returns installed records ordered by name.
func (s *Store) ListInstalled(ctx context.Context) ([]models.Package, error) {
	return s.query(ctx, `SELECT `+columns+` FROM packages WHERE installed = 1 ORDER BY name, format, architecture`)
}

// Search returns records whose name or description contains query. An
// empty query matches every record.
func (s *Store) Search(ctx context.Context, query string) ([]models.Package, error) {
	like := "%" + escapeLike(query) + "%"
	return s.query(ctx, `SELECT `+columns+` FROM packages
		WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		ORDER BY name, format, architecture`, like, like)
}

// DeleteUninstalled removes every record that is not installed.
func (s *Store) DeleteUninstalled(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE installed = 0`)
	if err != nil {
		return 0, models.WrapError(models.ErrStore, stage, "", fmt.Errorf("delete uninstalled: %w", err))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ReplaceCatalog swaps the uninstalled records of repoURL for pkgs and
// records the sync, all in one transaction. Records of other repositories
// are untouched. Installed records survive, with their catalog fields
// refreshed when pkgs re-declares them. pkgs must not repeat a key.
func (s *Store) ReplaceCatalog(ctx context.Context, repoURL string, pkgs []models.Package, when time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WrapError(models.ErrStore, stage, "", fmt.Errorf("begin sync: %w", err))
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE installed = 0 AND source_repo = ?`, repoURL)
	if err != nil {
		return models.WrapError(models.ErrStore, stage, "", fmt.Errorf("delete uninstalled: %w", err))
	}
	removed, _ := res.RowsAffected()

	stmt, err := tx.PrepareContext(ctx, upsertCatalog)
	if err != nil {
		return models.WrapError(models.ErrStore, stage, "", err)
	}
	defer stmt.Close()

	for i := range pkgs {
		pkg := &pkgs[i]
		k := pkg.Key()
		if _, err := stmt.ExecContext(ctx,
			k.Name, pkg.Version, pkg.Description, pkg.DownloadURL, pkg.Checksum,
			int64(pkg.Size), int(pkg.Type), k.Format.String(), repoURL, k.Architecture,
			models.JoinDependencies(pkg.Dependencies)); err != nil {
			return models.WrapError(models.ErrStore, stage, pkg.Name, fmt.Errorf("insert: %w", err))
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO repo_cache (repo_url, last_sync, package_count)
		VALUES (?, ?, ?)
		ON CONFLICT(repo_url) DO UPDATE SET last_sync = excluded.last_sync, package_count = excluded.package_count`,
		repoURL, when.Unix(), len(pkgs)); err != nil {
		return models.WrapError(models.ErrStore, stage, "", fmt.Errorf("record sync: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return models.WrapError(models.ErrStore, stage, "", fmt.Errorf("commit sync: %w", err))
	}

	logrus.Debugf("Catalog replaced: %d uninstalled records dropped, %d declared", removed, len(pkgs))
	return nil
}

// MarkInstalled records a successful install of key.
func (s *Store) MarkInstalled(ctx context.Context, key models.Key, when time.Time, path string) error {
	if when.IsZero() {
		return models.NewError(models.ErrInvalidInput, stage, key.Name, "install time cannot be zero")
	}
	return s.updateState(ctx, key, `UPDATE packages SET installed = 1, install_time = ?, install_path = ?
		WHERE name = ? AND format = ? AND architecture = ?`,
		when.Unix(), path, key.Name, key.Format.String(), key.Architecture)
}

// MarkRemoved clears the installation state of key. The record is kept.
func (s *Store) MarkRemoved(ctx context.Context, key models.Key) error {
	return s.updateState(ctx, key, `UPDATE packages SET installed = 0, install_time = 0, install_path = ''
		WHERE name = ? AND format = ? AND architecture = ?`,
		key.Name, key.Format.String(), key.Architecture)
}

func (s *Store) updateState(ctx context.Context, key models.Key, query string, args ...interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WrapError(models.ErrStore, stage, key.Name, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return models.WrapError(models.ErrStore, stage, key.Name, fmt.Errorf("update state: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewError(models.ErrNotFound, stage, key.Name, "no record for %s", key)
	}
	if err := tx.Commit(); err != nil {
		return models.WrapError(models.ErrStore, stage, key.Name, err)
	}
	return nil
}

// Repo returns the bookkeeping row of url.
func (s *Store) Repo(ctx context.Context, url string) (*RepoInfo, error) {
	var info RepoInfo
	var last int64
	err := s.db.QueryRowContext(ctx,
		`SELECT repo_url, last_sync, package_count FROM repo_cache WHERE repo_url = ?`, url).
		Scan(&info.URL, &last, &info.PackageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewError(models.ErrNotFound, stage, "", "repository %s was never synced", url)
	}
	if err != nil {
		return nil, models.WrapError(models.ErrStore, stage, "", err)
	}
	info.LastSync = time.Unix(last, 0)
	return &info, nil
}

// Repos lists every synced repository.
func (s *Store) Repos(ctx context.Context) ([]RepoInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT repo_url, last_sync, package_count FROM repo_cache ORDER BY repo_url`)
	if err != nil {
		return nil, models.WrapError(models.ErrStore, stage, "", err)
	}
	defer rows.Close()

	var repos []RepoInfo
	for rows.Next() {
		var info RepoInfo
		var last int64
		if err := rows.Scan(&info.URL, &last, &info.PackageCount); err != nil {
			return nil, models.WrapError(models.ErrStore, stage, "", err)
		}
		info.LastSync = time.Unix(last, 0)
		repos = append(repos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapError(models.ErrStore, stage, "", err)
	}
	return repos, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]models.Package, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.WrapError(models.ErrStore, stage, "", err)
	}
	defer rows.Close()

	var pkgs []models.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, models.WrapError(models.ErrStore, stage, "", err)
		}
		pkgs = append(pkgs, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapError(models.ErrStore, stage, "", err)
	}
	return pkgs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPackage(row rowScanner) (*models.Package, error) {
	var (
		pkg         models.Package
		size        int64
		pkgType     int
		format      string
		deps        string
		installed   int
		installTime int64
	)
	err := row.Scan(&pkg.Name, &pkg.Version, &pkg.Description, &pkg.DownloadURL, &pkg.Checksum,
		&size, &pkgType, &format, &pkg.SourceRepo, &pkg.Architecture, &deps,
		&installed, &installTime, &pkg.InstallPath)
	if err != nil {
		return nil, err
	}

	f, err := models.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", pkg.Name, err)
	}
	pkg.Format = f
	pkg.Size = uint64(size)
	pkg.Type = models.PackageType(pkgType)
	pkg.Dependencies = models.SplitDependencies(deps)
	pkg.Installed = installed != 0
	if installTime > 0 {
		pkg.InstallTime = time.Unix(installTime, 0)
	}
	return &pkg, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
