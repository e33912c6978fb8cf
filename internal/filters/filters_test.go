package filters

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

func restaurants() []domain.Item {
	return []domain.Item{
		{ID: "r1", Name: "Taco Loco", Attributes: map[string]any{
			"cuisine": "Mexican, Tacos", "price": "10-20", "latitude": 51.5007, "longitude": -0.1246,
		}},
		{ID: "r2", Name: "Pasta Place", Attributes: map[string]any{
			"cuisine": []any{"Italian", "Pizza"}, "price": 35.0, "latitude": 51.5055, "longitude": -0.0754,
		}},
		{ID: "r3", Name: "Sushi Bar", Attributes: map[string]any{
			"cuisine": []string{"Japanese"}, "price": "$$", "lat": "48.8584", "lng": "2.2945",
		}},
		{ID: "r4", Name: "Burger Joint", Attributes: map[string]any{
			"cuisine": "American, Burgers",
		}},
	}
}

func newStore(t *testing.T) *memory.MetadataStore {
	t.Helper()
	store, err := memory.NewMetadataStore(restaurants())
	require.NoError(t, err)
	return store
}

func allView(t *testing.T) driven.MetadataView {
	t.Helper()
	return newStore(t).View(nil)
}

func valuesState(key string, values ...string) *domain.ConversationState {
	return &domain.ConversationState{
		Constraints: domain.Constraints{Values: map[string][]string{key: values}},
	}
}

// fakeGeocoder resolves names from a fixed table.
type fakeGeocoder struct {
	places map[string]*domain.Place
	err    error
	calls  int
}

func (g *fakeGeocoder) Geocode(_ context.Context, name string) (*domain.Place, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.places[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func TestExactMatch(t *testing.T) {
	assert.True(t, ExactMatch("italian", "italian"))
	assert.False(t, ExactMatch("italian", "italians"))
}

func TestWordInMatch(t *testing.T) {
	tests := []struct {
		constraint string
		value      string
		want       bool
	}{
		{"taco", "tacos", true},
		{"tacos", "taco", true},
		{"burger", "burgers", true},
		{"sushi", "sushi bar", true},
		{"japanese food", "japanese", true},
		{"pizza", "pasta", false},
	}
	for _, tt := range tests {
		t.Run(tt.constraint+"/"+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, WordInMatch(tt.constraint, tt.value))
		})
	}
}

func TestAttributeValues(t *testing.T) {
	assert.Equal(t, []string{"mexican", "tacos"}, attributeValues(" Mexican ,Tacos,, "))
	assert.Equal(t, []string{"italian", "pizza"}, attributeValues([]any{"Italian", "Pizza"}))
	assert.Equal(t, []string{"a", "b", "c"}, attributeValues([]string{"a, b", "c"}))
	assert.Equal(t, []string{"4.5"}, attributeValues(4.5))
	assert.Equal(t, []string{"true"}, attributeValues(true))
	assert.Nil(t, attributeValues(nil))
	assert.Nil(t, attributeValues(map[string]any{"x": 1}))
}

func TestAttributeFilter_Exact(t *testing.T) {
	f := NewExact("cuisine", "cuisine", "cuisine")
	assert.Equal(t, "cuisine", f.Name())

	ids, err := f.Apply(context.Background(), valuesState("cuisine", "  ITALIAN "), allView(t))
	require.NoError(t, err)
	assert.True(t, ids.Equal(domain.NewIDSet("r2")))
}

func TestAttributeFilter_FullMatchIsConjunctive(t *testing.T) {
	f := NewExact("cuisine", "cuisine", "cuisine")

	ids, err := f.Apply(context.Background(), valuesState("cuisine", "italian", "pizza"), allView(t))
	require.NoError(t, err)
	assert.True(t, ids.Equal(domain.NewIDSet("r2")))
}

func TestAttributeFilter_FallsBackToPartial(t *testing.T) {
	f := NewWordIn("cuisine", "cuisine", "cuisine")

	// No item is both mexican and japanese.
	ids, err := f.Apply(context.Background(), valuesState("cuisine", "mexican", "japanese"), allView(t))
	require.NoError(t, err)
	assert.True(t, ids.Equal(domain.NewIDSet("r1", "r3")))
}

func TestAttributeFilter_WordInPlural(t *testing.T) {
	f := NewWordIn("cuisine", "cuisine", "cuisine")

	ids, err := f.Apply(context.Background(), valuesState("cuisine", "burger"), allView(t))
	require.NoError(t, err)
	assert.True(t, ids.Equal(domain.NewIDSet("r4")))
}

func TestAttributeFilter_NoMatchAtAllIsEmpty(t *testing.T) {
	f := NewExact("cuisine", "cuisine", "cuisine")

	ids, err := f.Apply(context.Background(), valuesState("cuisine", "thai"), allView(t))
	require.NoError(t, err)
	assert.Equal(t, 0, ids.Len())
}

func TestAttributeFilter_NoConstraintKeepsView(t *testing.T) {
	f := NewExact("cuisine", "cuisine", "cuisine")

	for _, state := range []*domain.ConversationState{nil, {}, valuesState("cuisine", " ")} {
		ids, err := f.Apply(context.Background(), state, allView(t))
		require.NoError(t, err)
		assert.Equal(t, 4, ids.Len())
	}
}

func TestAttributeFilter_ConstraintKeyDiffersFromField(t *testing.T) {
	f := NewExact("food", "cuisine", "food_type")

	ids, err := f.Apply(context.Background(), valuesState("food_type", "japanese"), allView(t))
	require.NoError(t, err)
	assert.True(t, ids.Equal(domain.NewIDSet("r3")))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi float64
		ok     bool
	}{
		{"10-20", 10, 20, true},
		{"$10 - $20", 10, 20, true},
		{"20-10", 10, 20, true},
		{"15", 15, 15, true},
		{"1,000-2,000", 1000, 2000, true},
		{"-5", -5, -5, true},
		{"cheap", 0, 0, false},
		{"10-", 10, math.Inf(1), true},
		{"-", 0, 0, false},
		{"-5-", -5, math.Inf(1), true},
		{"$$", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, ok := parseRange(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.lo, r.lo)
				assert.Equal(t, tt.hi, r.hi)
			}
		})
	}

	r, ok := parseRange("20+")
	require.True(t, ok)
	assert.Equal(t, 20.0, r.lo)
	assert.True(t, r.overlaps(numRange{lo: 1e9, hi: 1e9}))
}

func TestRangeFilter(t *testing.T) {
	f := NewRange("price", "price", "price")
	rangeState := func(r string) *domain.ConversationState {
		return &domain.ConversationState{Constraints: domain.Constraints{Ranges: map[string]string{"price": r}}}
	}

	t.Run("overlap and scalar containment", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), rangeState("15-40"), allView(t))
		require.NoError(t, err)
		// r3 has a malformed value and r4 has none; both are kept.
		assert.True(t, ids.Equal(domain.NewIDSet("r1", "r2", "r3", "r4")))
	})

	t.Run("excludes non-overlapping", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), rangeState("0-9"), allView(t))
		require.NoError(t, err)
		assert.True(t, ids.Equal(domain.NewIDSet("r3", "r4")))
	})

	t.Run("malformed constraint is fail-open", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), rangeState("not a range"), allView(t))
		require.NoError(t, err)
		assert.Equal(t, 4, ids.Len())
	})

	t.Run("no constraint keeps view", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), nil, allView(t))
		require.NoError(t, err)
		assert.Equal(t, 4, ids.Len())
	})
}

func TestDistanceKm(t *testing.T) {
	london := domain.Place{Lat: 51.5074, Lng: -0.1278}
	paris := domain.Place{Lat: 48.8566, Lng: 2.3522}

	d := DistanceKm(latLng(london), latLng(paris))
	assert.InDelta(t, 343.5, d, 2)
}

func TestLocationFilter(t *testing.T) {
	geocoder := &fakeGeocoder{places: map[string]*domain.Place{
		"westminster":  {Name: "Westminster", Lat: 51.4995, Lng: -0.1248},
		"eiffel tower": {Name: "Eiffel Tower", Lat: 48.8584, Lng: 2.2945},
		"greater london": {
			Name: "Greater London", Lat: 51.5074, Lng: -0.1278,
			Bounds: &domain.BoundingBox{South: 51.28, North: 51.69, West: -0.51, East: 0.33},
		},
	}}
	f := NewLocation("near", geocoder, 1)
	locState := func(names ...string) *domain.ConversationState {
		return &domain.ConversationState{Constraints: domain.Constraints{Locations: names}}
	}

	t.Run("within default radius", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), locState("westminster"), allView(t))
		require.NoError(t, err)
		assert.True(t, ids.Equal(domain.NewIDSet("r1")))
	})

	t.Run("any location matches", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), locState("westminster", "eiffel tower"), allView(t))
		require.NoError(t, err)
		assert.True(t, ids.Equal(domain.NewIDSet("r1", "r3")))
	})

	t.Run("bounding box widens radius", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), locState("greater london"), allView(t))
		require.NoError(t, err)
		assert.True(t, ids.Equal(domain.NewIDSet("r1", "r2")))
	})

	t.Run("ungeocodable location is skipped", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), locState("atlantis", "westminster"), allView(t))
		require.NoError(t, err)
		assert.True(t, ids.Equal(domain.NewIDSet("r1")))
	})

	t.Run("nothing geocodes keeps view", func(t *testing.T) {
		ids, err := f.Apply(context.Background(), locState("atlantis"), allView(t))
		require.NoError(t, err)
		assert.Equal(t, 4, ids.Len())
	})
}

func TestLocationFilter_GeocoderFailureIsFailOpen(t *testing.T) {
	f := NewLocation("near", &fakeGeocoder{err: errors.New("connection refused")}, 5)
	state := &domain.ConversationState{Constraints: domain.Constraints{Locations: []string{"soho"}}}

	ids, err := f.Apply(context.Background(), state, allView(t))
	require.NoError(t, err)
	assert.Equal(t, 4, ids.Len())
}

func TestLocationFilter_CancelledContext(t *testing.T) {
	f := NewLocation("near", &fakeGeocoder{err: context.Canceled}, 5)
	state := &domain.ConversationState{Constraints: domain.Constraints{Locations: []string{"soho"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Apply(ctx, state, allView(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExclusionFilter(t *testing.T) {
	f := NewExclusion("seen")

	state := &domain.ConversationState{AlreadyRecommended: []string{"r1", "  pasta place ", "R3"}}
	ids, err := f.Apply(context.Background(), state, allView(t))
	require.NoError(t, err)

	// r3 is kept: ids are case-sensitive and "R3" is not its name.
	assert.True(t, ids.Equal(domain.NewIDSet("r3", "r4")))
}

func TestExclusionFilter_EmptyKeepsView(t *testing.T) {
	f := NewExclusion("seen")

	ids, err := f.Apply(context.Background(), &domain.ConversationState{}, allView(t))
	require.NoError(t, err)
	assert.Equal(t, 4, ids.Len())
}

func latLng(p domain.Place) s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}
