package scanner

import (
	"context"

	"github.com/nexusos/nexuspkg/internal/models"
)

// ScannedPackage represents a package file found during scanning
type ScannedPackage struct {
	Path   string
	Format models.Format
	Size   int64
}

// Scanner interface for detecting and scanning packages
type Scanner interface {
	// Scan recursively scans a directory for packages
	Scan(ctx context.Context, dir string) ([]ScannedPackage, error)

	// DetectType determines the package format of a file
	DetectType(path string) (models.Format, bool, error)
}
