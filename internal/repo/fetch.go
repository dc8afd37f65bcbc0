package repo

import (
	"context"
	"os"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Artifact is a package file to download and verify
type Artifact struct {
	Package  string
	URL      string
	Path     string
	Checksum string // empty skips verification
}

// Fetch downloads a into its cache path and verifies its checksum within
// timeout (zero means no limit). On mismatch the file is removed.
func (c *Client) Fetch(ctx context.Context, a Artifact, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logrus.Infof("Downloading %s", a.Package)
	if err := c.Download(ctx, a.URL, a.Path); err != nil {
		return tagPackage(err, a.Package)
	}

	if a.Checksum == "" {
		logrus.Warnf("No checksum declared for %s, skipping verification", a.Package)
		return nil
	}

	ok, err := utils.VerifyChecksum(a.Path, a.Checksum)
	if err != nil {
		os.Remove(a.Path)
		return models.WrapError(models.ErrIO, "verify", a.Package, err)
	}
	if !ok {
		os.Remove(a.Path)
		return models.NewError(models.ErrChecksumMismatch, "verify", a.Package, "checksum of %s does not match %s", a.URL, a.Checksum)
	}
	logrus.Debugf("Checksum verified for %s", a.Package)
	return nil
}

// FetchAll fetches artifacts with at most limit concurrent downloads. The
// returned slice holds one error (or nil) per artifact; one failure does
// not stop the others.
func (c *Client) FetchAll(ctx context.Context, artifacts []Artifact, limit int, timeout time.Duration) []error {
	if limit < 1 {
		limit = 1
	}
	errs := make([]error, len(artifacts))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range artifacts {
		i := i
		g.Go(func() error {
			errs[i] = c.Fetch(ctx, artifacts[i], timeout)
			return nil
		})
	}
	g.Wait()
	return errs
}

func tagPackage(err error, pkg string) error {
	if pe, ok := err.(*models.PkgError); ok && pe.Package == "" {
		copied := *pe
		copied.Package = pkg
		return &copied
	}
	return models.WrapError(models.ErrNetwork, stage, pkg, err)
}
