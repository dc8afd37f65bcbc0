package repo

import (
	"encoding/json"
	"fmt"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/jsonc"
)

var requiredFields = []string{"name", "version", "description", "download_url", "checksum", "size"}

// ParseIndex decodes an index document. The top level must be an object
// with a packages array; elements that lack a required field or carry a
// field of the wrong type are skipped. Comments are tolerated.
func ParseIndex(data []byte, repoURL string) ([]models.Package, error) {
	var doc struct {
		Packages *json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, models.WrapError(models.ErrNetwork, stage, "", fmt.Errorf("malformed index: %w", err))
	}
	if doc.Packages == nil {
		return nil, models.NewError(models.ErrNetwork, stage, "", "malformed index: missing packages array")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(*doc.Packages, &elements); err != nil {
		return nil, models.WrapError(models.ErrNetwork, stage, "", fmt.Errorf("malformed index: packages is not an array: %w", err))
	}

	pkgs := make([]models.Package, 0, len(elements))
	for i, raw := range elements {
		pkg, err := parseEntry(raw)
		if err != nil {
			logrus.Warnf("Skipping index entry %d: %v", i, err)
			continue
		}
		pkg.SourceRepo = repoURL
		pkgs = append(pkgs, *pkg)
	}
	return pkgs, nil
}

func parseEntry(raw json.RawMessage) (*models.Package, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("not an object")
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return nil, fmt.Errorf("missing %q", f)
		}
	}

	var entry models.IndexEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("invalid field: %w", err)
	}
	if err := models.ValidateName(entry.Name); err != nil {
		return nil, err
	}

	pkg := &models.Package{
		Name:         entry.Name,
		Version:      entry.Version,
		Description:  entry.Description,
		DownloadURL:  entry.DownloadURL,
		Checksum:     entry.Checksum,
		Size:         entry.Size,
		Type:         models.TypeSoftware,
		Format:       models.FormatNative,
		Architecture: entry.Architecture,
		Dependencies: entry.Dependencies,
	}
	if entry.Type != 0 {
		t := models.PackageType(entry.Type)
		if t < models.TypeSoftware || t > models.TypeDesktopApp {
			return nil, fmt.Errorf("%s: unknown type %d", entry.Name, entry.Type)
		}
		pkg.Type = t
	}
	if entry.Format != "" {
		f, err := models.ParseFormat(entry.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name, err)
		}
		pkg.Format = f
	}
	if pkg.Architecture == "" {
		pkg.Architecture = models.DefaultArchitecture
	}
	return pkg, nil
}
