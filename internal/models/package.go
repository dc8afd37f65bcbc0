package models

import (
	"fmt"
	"strings"
	"time"
)

// PackageType is informational and does not affect installation
type PackageType int

const (
	TypeSoftware PackageType = iota
	TypeAIModel
	TypeDataset
	TypeLibrary
	TypeKernelModule
	TypeDesktopApp
)

// String returns the string representation of PackageType
func (t PackageType) String() string {
	switch t {
	case TypeSoftware:
		return "software"
	case TypeAIModel:
		return "ai-model"
	case TypeDataset:
		return "dataset"
	case TypeLibrary:
		return "library"
	case TypeKernelModule:
		return "kernel-module"
	case TypeDesktopApp:
		return "desktop-app"
	default:
		return "software"
	}
}

// DefaultArchitecture is the target triple assumed when a record carries none.
const DefaultArchitecture = "x86_64"

// Package is the persisted package record
type Package struct {
	Name         string
	Version      string
	Description  string
	DownloadURL  string
	Checksum     string // hex digest, empty means unverified
	Size         uint64
	Type         PackageType
	Format       Format
	SourceRepo   string
	Architecture string
	Dependencies []string // declared, never resolved

	Installed   bool
	InstallTime time.Time
	InstallPath string
}

// Key identifies a record in the store.
type Key struct {
	Name         string
	Format       Format
	Architecture string
}

// String returns name:format:arch.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Name, k.Format, k.Architecture)
}

// Key returns the natural key of the record.
func (p *Package) Key() Key {
	arch := p.Architecture
	if arch == "" {
		arch = DefaultArchitecture
	}
	return Key{Name: p.Name, Format: p.Format, Architecture: arch}
}

// ValidateName rejects names that are empty or unsafe to use as a single
// path component (cache files and scratch directories are named after it).
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid package name %q", name)
	}
	if strings.HasPrefix(name, "-") {
		// would be parsed as an option by external tools
		return fmt.Errorf("package name %q cannot start with '-'", name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("package name %q contains a path separator", name)
	}
	return nil
}

// JoinDependencies flattens a dependency list for storage.
func JoinDependencies(deps []string) string {
	return strings.Join(deps, ",")
}

// SplitDependencies reverses JoinDependencies.
func SplitDependencies(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	deps := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			deps = append(deps, p)
		}
	}
	return deps
}
