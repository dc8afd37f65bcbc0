package inspect

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/utils"
)

// PKGINFOName is the metadata member of pacman and apk packages
const PKGINFOName = ".PKGINFO"

// parsePKGINFOFile reads .PKGINFO out of a pacman (.pkg.tar.*) or Alpine
// (.apk, concatenated gzip streams) package.
func parsePKGINFOFile(path string) (*models.Package, error) {
	data, err := extractPKGINFO(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract .PKGINFO: %w", err)
	}
	pkg, err := parsePKGINFO(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .PKGINFO: %w", err)
	}
	return pkg, nil
}

func extractPKGINFO(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rc, _, err := utils.Decompress(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimPrefix(header.Name, "./") == PKGINFOName {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf(".PKGINFO not found in package")
}

// parsePKGINFO parses "key = value" lines
func parsePKGINFO(data []byte) (*models.Package, error) {
	pkg := &models.Package{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "pkgname":
			pkg.Name = value
		case "pkgver":
			pkg.Version = value
		case "pkgdesc":
			pkg.Description = value
		case "arch":
			pkg.Architecture = value
		case "depend":
			// Alpine shared-object and command provides are not package names
			if strings.HasPrefix(value, "so:") || strings.HasPrefix(value, "cmd:") || strings.HasPrefix(value, "pc:") {
				continue
			}
			if name := dependencyName(value); name != "" {
				pkg.Dependencies = append(pkg.Dependencies, name)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("no pkgname")
	}
	return pkg, nil
}
