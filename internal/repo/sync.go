package repo

import (
	"context"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

// Catalog is the part of the package store a sync writes to
type Catalog interface {
	ReplaceCatalog(ctx context.Context, repoURL string, pkgs []models.Package, when time.Time) error
}

// Syncer refreshes the catalog of available packages from a repository
type Syncer struct {
	client  *Client
	catalog Catalog
	timeout time.Duration
	now     func() time.Time
}

// NewSyncer creates a syncer writing to catalog.
func NewSyncer(client *Client, catalog Catalog, cfg *models.Config) *Syncer {
	return &Syncer{
		client:  client,
		catalog: catalog,
		timeout: cfg.FetchTimeout,
		now:     time.Now,
	}
}

// Sync fetches the index of repoURL and replaces the uninstalled records
// of that repository with its packages. It returns the number of distinct
// packages stored. Nothing is written unless the index was fetched and
// parsed.
func (s *Syncer) Sync(ctx context.Context, repoURL string) (int, error) {
	if repoURL == "" {
		return 0, models.NewError(models.ErrInvalidInput, "sync", "", "repository URL cannot be empty")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logrus.Infof("Syncing repository %s", repoURL)
	data, err := s.client.FetchIndex(ctx, repoURL)
	if err != nil {
		return 0, err
	}

	pkgs, err := ParseIndex(data, repoURL)
	if err != nil {
		return 0, err
	}

	for _, dup := range utils.DetectConflicts(pkgs) {
		logrus.Warnf("Duplicate entry %s in index of %s, keeping the first", utils.PackageIdentity(dup), repoURL)
	}
	pkgs = utils.Dedupe(pkgs)

	if err := s.catalog.ReplaceCatalog(ctx, repoURL, pkgs, s.now()); err != nil {
		return 0, err
	}

	logrus.Infof("Synced %d packages from %s", len(pkgs), repoURL)
	return len(pkgs), nil
}
