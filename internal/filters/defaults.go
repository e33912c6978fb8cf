package filters

import (
	"fmt"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Filter types understood by RegisterDefaults.
const (
	TypeExact     = "exact"
	TypeWordIn    = "word_in"
	TypeRange     = "range"
	TypeLocation  = "location"
	TypeExclusion = "exclusion"
)

// RegisterDefaults registers all built-in filters with the registry.
// The location filter is registered only when a geocoder is supplied.
func RegisterDefaults(r *Registry, geocoder driven.Geocoder, defaultRadiusKm float64) {
	r.Register(TypeExact, attributeBuilder(NewExact))
	r.Register(TypeWordIn, attributeBuilder(NewWordIn))
	r.Register(TypeRange, buildRange)
	r.Register(TypeExclusion, buildExclusion)
	if geocoder != nil {
		r.Register(TypeLocation, func(spec domain.FilterSpec) (driven.Filter, error) {
			if defaultRadiusKm <= 0 {
				return nil, fmt.Errorf("%w: default radius must be positive", domain.ErrInvalidInput)
			}
			return NewLocation(specName(spec), geocoder, defaultRadiusKm), nil
		})
	}
}

// attributeBuilder adapts an attribute filter constructor; field is required.
func attributeBuilder(newFilter func(name, field, key string) *AttributeFilter) BuilderFunc {
	return func(spec domain.FilterSpec) (driven.Filter, error) {
		if spec.Field == "" {
			return nil, fmt.Errorf("%w: %s filter requires a field", domain.ErrInvalidInput, spec.Type)
		}
		return newFilter(specName(spec), spec.Field, spec.ConstraintKey()), nil
	}
}

func buildRange(spec domain.FilterSpec) (driven.Filter, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("%w: range filter requires a field", domain.ErrInvalidInput)
	}
	return NewRange(specName(spec), spec.Field, spec.ConstraintKey()), nil
}

func buildExclusion(spec domain.FilterSpec) (driven.Filter, error) {
	return NewExclusion(specName(spec)), nil
}
