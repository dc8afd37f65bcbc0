package models

import (
	"fmt"
	"strings"
)

// Format identifies a package container kind
type Format int

const (
	FormatNative Format = iota
	FormatDeb
	FormatRPM
	FormatZst
	FormatAppImage
	FormatFlatpak
	FormatSnap
	FormatTarXZ
	FormatTarGZ
	FormatZip
	FormatBinary
	FormatWheel
	FormatNPM
	FormatCargo
	FormatDocker
	FormatOCI
	FormatAPK
	FormatNix
	FormatEbuild
	FormatTar
)

type formatInfo struct {
	name      string
	extension string
	delegate  bool
}

var formats = map[Format]formatInfo{
	FormatNative:   {"native", ".npkg", false},
	FormatDeb:      {"deb", ".deb", false},
	FormatRPM:      {"rpm", ".rpm", false},
	FormatZst:      {"zst", ".pkg.tar.zst", false},
	FormatAppImage: {"appimage", ".AppImage", false},
	FormatFlatpak:  {"flatpak", "", true},
	FormatSnap:     {"snap", "", true},
	FormatTarXZ:    {"tar.xz", ".tar.xz", false},
	FormatTarGZ:    {"tar.gz", ".tar.gz", false},
	FormatZip:      {"zip", ".zip", false},
	FormatBinary:   {"binary", ".pkg", false},
	FormatWheel:    {"wheel", ".whl", false},
	FormatNPM:      {"npm", "", true},
	FormatCargo:    {"cargo", "", true},
	FormatDocker:   {"docker", "", true},
	FormatOCI:      {"oci", "", true},
	FormatAPK:      {"apk", ".apk", false},
	FormatNix:      {"nix", "", true},
	FormatEbuild:   {"ebuild", "", true},
	FormatTar:      {"tar", ".tar", false},
}

// AllFormats returns every known format in declaration order.
func AllFormats() []Format {
	out := make([]Format, 0, len(formats))
	for f := FormatNative; f <= FormatTar; f++ {
		out = append(out, f)
	}
	return out
}

// String returns the string representation of Format
func (f Format) String() string {
	if info, ok := formats[f]; ok {
		return info.name
	}
	return "unknown"
}

// Extension returns the file extension used for cached artifacts of this format.
func (f Format) Extension() string {
	if info, ok := formats[f]; ok && info.extension != "" {
		return info.extension
	}
	return ".pkg"
}

// IsDelegate reports whether installation is handed entirely to an
// external tool keyed by package name.
func (f Format) IsDelegate() bool {
	return formats[f].delegate
}

// Valid reports whether f is a member of the closed format set.
func (f Format) Valid() bool {
	_, ok := formats[f]
	return ok
}

// ParseFormat parses a format name. Aliases accepted by the command
// surface ("pip", "arch", "pkg.tar.zst") map to their canonical format.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "pip", "whl", "python-wheel":
		return FormatWheel, nil
	case "arch", "pacman", "pkg.tar.zst":
		return FormatZst, nil
	case "npkg", "":
		return FormatNative, nil
	case "tgz":
		return FormatTarGZ, nil
	}
	for f, info := range formats {
		if info.name == name {
			return f, nil
		}
	}
	return FormatNative, fmt.Errorf("unknown package format: %q", s)
}
