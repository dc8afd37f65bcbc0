package utils

import (
	"github.com/nexusos/nexuspkg/internal/models"
)

// PackageIdentity returns the unique identifier of a record: its
// (name, format, architecture) key.
func PackageIdentity(pkg models.Package) string {
	return pkg.Key().String()
}

// DetectConflicts returns the packages that share an identity with an
// earlier package in the list.
func DetectConflicts(packages []models.Package) []models.Package {
	seen := make(map[string]bool)

	var conflicts []models.Package
	for _, pkg := range packages {
		id := PackageIdentity(pkg)
		if seen[id] {
			conflicts = append(conflicts, pkg)
			continue
		}
		seen[id] = true
	}
	return conflicts
}

// Dedupe drops packages whose identity repeats an earlier one, keeping
// the first. pkgs is reused.
func Dedupe(pkgs []models.Package) []models.Package {
	seen := make(map[models.Key]bool, len(pkgs))
	out := pkgs[:0]
	for _, p := range pkgs {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		out = append(out, p)
	}
	return out
}

// UniqueNames returns names without duplicates, keeping first-seen order.
func UniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
