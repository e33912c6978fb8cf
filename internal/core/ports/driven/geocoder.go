package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// Geocoder resolves a place name to coordinates and extent.
type Geocoder interface {
	// Geocode returns the place, or domain.ErrNotFound if it cannot be resolved.
	Geocode(ctx context.Context, name string) (*domain.Place, error)
}
