package inspect

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/utils"
)

const (
	arMagic      = "!<arch>\n"
	arHeaderSize = 60
)

func parseDeb(path string) (*models.Package, error) {
	control, err := extractControl(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract control: %w", err)
	}
	pkg, err := parseControl(control)
	if err != nil {
		return nil, fmt.Errorf("failed to parse control: %w", err)
	}
	return pkg, nil
}

// extractControl returns the control file of a .deb (an ar archive
// holding debian-binary, control.tar.* and data.tar.*).
func extractControl(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != arMagic {
		return nil, fmt.Errorf("not an ar archive")
	}

	header := make([]byte, arHeaderSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read ar header: %w", err)
		}

		// Name is space padded; GNU ar appends a slash
		filename := strings.TrimRight(strings.TrimSpace(string(header[0:16])), "/")
		size, err := strconv.ParseInt(strings.TrimSpace(string(header[48:58])), 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("invalid ar member size for %s", filename)
		}

		if strings.HasPrefix(filename, "control.tar") {
			return controlFromTar(io.LimitReader(f, size))
		}

		// Members are aligned to 2 bytes
		if _, err := f.Seek(size+size%2, io.SeekCurrent); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("control.tar not found in package")
}

func controlFromTar(r io.Reader) ([]byte, error) {
	rc, _, err := utils.Decompress(r)
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
		if header.Name == "./control" || header.Name == "control" {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("control file not found in control.tar")
}

// parseControl parses a Debian control paragraph
func parseControl(data []byte) (*models.Package, error) {
	pkg := &models.Package{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	var key string
	var value strings.Builder
	flush := func() {
		if key != "" {
			setControlValue(pkg, key, value.String())
		}
	}

	for sc.Scan() {
		line := sc.Text()

		// Continuation lines start with whitespace
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			value.WriteString("\n")
			value.WriteString(strings.TrimSpace(line))
			continue
		}

		flush()
		key = ""
		if k, v, ok := strings.Cut(line, ":"); ok {
			key = strings.TrimSpace(k)
			value.Reset()
			value.WriteString(strings.TrimSpace(v))
		}
	}
	flush()

	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("control file has no Package field")
	}
	return pkg, nil
}

func setControlValue(pkg *models.Package, key, value string) {
	switch key {
	case "Package":
		pkg.Name = value
	case "Version":
		pkg.Version = value
	case "Architecture":
		pkg.Architecture = value
	case "Description":
		// The synopsis is the first line
		pkg.Description, _, _ = strings.Cut(value, "\n")
	case "Depends", "Pre-Depends":
		for _, dep := range strings.Split(value, ",") {
			if name := dependencyName(dep); name != "" {
				pkg.Dependencies = append(pkg.Dependencies, name)
			}
		}
	}
}
