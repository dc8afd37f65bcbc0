package inspect

import (
	"fmt"
	"os"
	"strings"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sassoftware/go-rpmutils"
)

func parseRPM(path string) (*models.Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read RPM: %w", err)
	}

	version := getStringTag(rpm, rpmutils.VERSION)
	if release := getStringTag(rpm, rpmutils.RELEASE); release != "" {
		version += "-" + release
	}

	var deps []string
	for _, req := range getStringSliceTag(rpm, rpmutils.REQUIRENAME) {
		// rpmlib(...) and file requirements are not package names
		if strings.HasPrefix(req, "rpmlib(") || strings.HasPrefix(req, "/") {
			continue
		}
		deps = append(deps, req)
	}

	return &models.Package{
		Name:         getStringTag(rpm, rpmutils.NAME),
		Version:      version,
		Architecture: getStringTag(rpm, rpmutils.ARCH),
		Description:  getStringTag(rpm, rpmutils.SUMMARY),
		Dependencies: deps,
	}, nil
}

// getStringTag safely gets a string tag from RPM
func getStringTag(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// getStringSliceTag safely gets a string slice tag from RPM
func getStringSliceTag(rpm *rpmutils.Rpm, tag int) []string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return nil
	}
	slice, ok := val.([]string)
	if !ok {
		return nil
	}
	var result []string
	for _, s := range slice {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}
