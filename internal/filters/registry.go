package filters

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// BuilderFunc creates a Filter from its configured spec.
type BuilderFunc func(spec domain.FilterSpec) (driven.Filter, error)

// Registry maps filter types to their builders.
// It allows the chain to be assembled from configuration.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new filter registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a builder for a filter type.
func (r *Registry) Register(filterType string, builder BuilderFunc) {
	r.builders[filterType] = builder
}

// Build creates a filter from spec.
// Returns domain.ErrUnsupportedType if the type is not registered.
func (r *Registry) Build(spec domain.FilterSpec) (driven.Filter, error) {
	builder, ok := r.builders[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: filter type %q", domain.ErrUnsupportedType, spec.Type)
	}
	f, err := builder(spec)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", specName(spec), err)
	}
	return f, nil
}

// BuildChain builds every spec in order and chains them over store.
func (r *Registry) BuildChain(store driven.MetadataStore, specs []domain.FilterSpec) (*Chain, error) {
	built := make([]driven.Filter, 0, len(specs))
	for _, spec := range specs {
		f, err := r.Build(spec)
		if err != nil {
			return nil, err
		}
		built = append(built, f)
	}
	return NewChain(store, built...), nil
}

// Has returns true if a builder is registered for the filter type.
func (r *Registry) Has(filterType string) bool {
	_, ok := r.builders[filterType]
	return ok
}

// Types returns all registered filter types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func specName(spec domain.FilterSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.Type
}
