package filters

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0088

// Ensure LocationFilter implements the interface.
var _ driven.Filter = (*LocationFilter)(nil)

// LocationFilter keeps items near any of the locations named in the state.
//
// Each location is geocoded; an item matches when its great-circle distance
// to the location is within max(default radius, half the location's
// bounding-box diagonal). Locations that cannot be geocoded are skipped.
// Once at least one location resolves, items without coordinates are dropped.
type LocationFilter struct {
	name     string
	geocoder driven.Geocoder
	radiusKm float64
}

// NewLocation creates a location filter.
func NewLocation(name string, geocoder driven.Geocoder, defaultRadiusKm float64) *LocationFilter {
	return &LocationFilter{name: name, geocoder: geocoder, radiusKm: defaultRadiusKm}
}

// Name returns the filter name.
func (f *LocationFilter) Name() string {
	return f.name
}

type searchArea struct {
	center   s2.LatLng
	radiusKm float64
}

// Apply keeps the items of view within range of a requested location.
func (f *LocationFilter) Apply(
	ctx context.Context,
	state *domain.ConversationState,
	view driven.MetadataView,
) (domain.IDSet, error) {
	if state == nil || len(state.Constraints.Locations) == 0 {
		return view.IDs(), nil
	}

	areas, err := f.resolve(ctx, state.Constraints.Locations)
	if err != nil {
		return nil, err
	}
	if len(areas) == 0 {
		return view.IDs(), nil
	}

	ids := domain.NewIDSet()
	for _, item := range view.Items() {
		pos, ok := itemPosition(&item)
		if !ok {
			continue
		}
		for _, a := range areas {
			if DistanceKm(pos, a.center) <= a.radiusKm {
				ids.Add(item.ID)
				break
			}
		}
	}
	return ids, nil
}

func (f *LocationFilter) resolve(ctx context.Context, names []string) ([]searchArea, error) {
	var areas []searchArea
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		place, err := f.geocoder.Geocode(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, domain.ErrNotFound) {
				logger.Debug("Filter %s: unknown location %q, skipping", f.name, name)
			} else {
				logger.Warn("Filter %s: geocoding %q failed, skipping: %v", f.name, name, err)
			}
			continue
		}
		areas = append(areas, searchArea{
			center:   s2.LatLngFromDegrees(place.Lat, place.Lng),
			radiusKm: max(f.radiusKm, halfDiagonalKm(place.Bounds)),
		})
	}
	return areas, nil
}

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * EarthRadiusKm
}

func halfDiagonalKm(b *domain.BoundingBox) float64 {
	if b == nil {
		return 0
	}
	sw := s2.LatLngFromDegrees(b.South, b.West)
	ne := s2.LatLngFromDegrees(b.North, b.East)
	return DistanceKm(sw, ne) / 2
}

// itemPosition reads coordinates from the latitude/longitude or lat/lng
// attributes.
func itemPosition(item *domain.Item) (s2.LatLng, bool) {
	for _, keys := range [][2]string{{"latitude", "longitude"}, {"lat", "lng"}} {
		lat, ok1 := numericAttribute(item, keys[0])
		lng, ok2 := numericAttribute(item, keys[1])
		if ok1 && ok2 {
			return s2.LatLngFromDegrees(lat, lng), true
		}
	}
	return s2.LatLng{}, false
}

func numericAttribute(item *domain.Item, key string) (float64, bool) {
	raw, ok := item.Attribute(key)
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}
