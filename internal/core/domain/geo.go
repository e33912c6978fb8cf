package domain

// BoundingBox is a geographic extent in decimal degrees.
type BoundingBox struct {
	South float64 `json:"south" toml:"south"`
	North float64 `json:"north" toml:"north"`
	West  float64 `json:"west" toml:"west"`
	East  float64 `json:"east" toml:"east"`
}

// Place is a geocoded location.
type Place struct {
	Name string  `json:"name" toml:"name"`
	Lat  float64 `json:"lat" toml:"lat"`
	Lng  float64 `json:"lng" toml:"lng"`

	// Bounds is the extent of the place, nil for point locations.
	Bounds *BoundingBox `json:"bounds,omitempty" toml:"bounds,omitempty"`
}
