package installer

import (
	"context"
	"sort"

	"github.com/nexusos/nexuspkg/internal/models"
)

// Strategy installs one format. artifact is the local package file for
// archive-based formats and empty for delegate formats. It returns the
// location the package was installed to, or "" for the default.
type Strategy interface {
	Install(ctx context.Context, pkg *models.Package, artifact string) (string, error)
}

// Remover is implemented by strategies that can undo their install.
type Remover interface {
	Remove(ctx context.Context, pkg *models.Package) error
}

// Registry maps formats to strategies
type Registry struct {
	strategies map[models.Format]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[models.Format]Strategy)}
}

// Register sets the strategy of f, replacing any previous one.
func (r *Registry) Register(f models.Format, s Strategy) {
	r.strategies[f] = s
}

// Lookup returns the strategy of f.
func (r *Registry) Lookup(f models.Format) (Strategy, bool) {
	s, ok := r.strategies[f]
	return s, ok
}

// Formats returns the registered formats in enum order.
func (r *Registry) Formats() []models.Format {
	out := make([]models.Format, 0, len(r.strategies))
	for f := range r.strategies {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
