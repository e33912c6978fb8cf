// Package gazetteer resolves place names from a static table.
package gazetteer

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Ensure Gazetteer implements the interface.
var _ driven.Geocoder = (*Gazetteer)(nil)

// Gazetteer is an in-memory, case-insensitive place lookup.
type Gazetteer struct {
	places map[string]domain.Place
}

// New builds a gazetteer. Later entries win over earlier ones with the same name.
func New(places []domain.Place) (*Gazetteer, error) {
	g := &Gazetteer{places: make(map[string]domain.Place, len(places))}
	for i, p := range places {
		key := normalize(p.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: place %d has no name", domain.ErrInvalidInput, i)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return nil, fmt.Errorf("%w: place %q has invalid coordinates %g,%g",
				domain.ErrInvalidInput, p.Name, p.Lat, p.Lng)
		}
		g.places[key] = p
	}
	return g, nil
}

// Geocode returns the place named name.
func (g *Gazetteer) Geocode(ctx context.Context, name string) (*domain.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := g.places[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: place %q", domain.ErrNotFound, name)
	}
	return &p, nil
}

// Len returns the number of known places.
func (g *Gazetteer) Len() int {
	return len(g.places)
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
