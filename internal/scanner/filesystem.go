package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct{}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner() *FileSystemScanner {
	return &FileSystemScanner{}
}

// Scan recursively scans a directory for package files. Files that
// neither carry a known suffix nor a known magic number are skipped.
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]ScannedPackage, error) {
	var packages []ScannedPackage

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		format, matched, err := s.DetectType(path)
		if err != nil {
			logrus.Warnf("Failed to detect format for %s: %v", path, err)
			return nil
		}
		if !matched {
			return nil
		}

		logrus.Debugf("Found %s package: %s", format, path)

		packages = append(packages, ScannedPackage{
			Path:   path,
			Format: format,
			Size:   info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	logrus.Debugf("Found %d packages in %s", len(packages), dir)
	return packages, nil
}

// DetectType determines the package format of a file
func (s *FileSystemScanner) DetectType(path string) (models.Format, bool, error) {
	return classifyFile(path)
}
