package filters

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// Ensure RangeFilter implements the interface.
var _ driven.Filter = (*RangeFilter)(nil)

// RangeFilter keeps items whose numeric attribute overlaps a requested range.
//
// Constraints look like "10-20", "15" (treated as 15-15) or "20+". Currency
// symbols, thousands separators and spaces are ignored. A malformed
// constraint disables the filter; an item with a missing or malformed value
// is kept.
type RangeFilter struct {
	name  string
	field string
	key   string
}

// NewRange creates a range filter over field, reading the constraint at key.
func NewRange(name, field, key string) *RangeFilter {
	return &RangeFilter{name: name, field: field, key: key}
}

// Name returns the filter name.
func (f *RangeFilter) Name() string {
	return f.name
}

// Apply keeps the items of view whose value overlaps the requested range.
func (f *RangeFilter) Apply(
	_ context.Context,
	state *domain.ConversationState,
	view driven.MetadataView,
) (domain.IDSet, error) {
	constraint, ok := state.RangeFor(f.key)
	if !ok {
		return view.IDs(), nil
	}
	want, ok := parseRange(constraint)
	if !ok {
		logger.Warn("Filter %s: ignoring malformed range %q", f.name, constraint)
		return view.IDs(), nil
	}

	ids := domain.NewIDSet()
	for _, item := range view.Items() {
		raw, _ := item.Attribute(f.field)
		have, ok := valueRange(raw)
		if !ok || have.overlaps(want) {
			ids.Add(item.ID)
		}
	}
	return ids, nil
}

type numRange struct {
	lo, hi float64
}

func (r numRange) overlaps(o numRange) bool {
	return r.lo <= o.hi && o.lo <= r.hi
}

var rangeCleaner = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// parseRange parses "lo-hi", "n", "n+" or "n-". A trailing "+" or "-"
// leaves the range open above; a leading "-" is a sign, not an upper bound.
func parseRange(s string) (numRange, bool) {
	s = rangeCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return numRange{}, false
	}

	rest, found := strings.CutSuffix(s, "+")
	if !found {
		rest, found = strings.CutSuffix(s, "-")
	}
	if found {
		lo, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return numRange{}, false
		}
		return numRange{lo: lo, hi: math.Inf(1)}, true
	}

	// Skip a leading sign so "-5" parses as a single value.
	if i := strings.Index(s[1:], "-"); i >= 0 {
		lo, err1 := strconv.ParseFloat(s[:i+1], 64)
		hi, err2 := strconv.ParseFloat(s[i+2:], 64)
		if err1 != nil || err2 != nil {
			return numRange{}, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return numRange{lo: lo, hi: hi}, true
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return numRange{}, false
	}
	return numRange{lo: n, hi: n}, true
}

// valueRange reads a metadata value as a range; scalars become a point.
func valueRange(raw any) (numRange, bool) {
	switch v := raw.(type) {
	case float64:
		return numRange{lo: v, hi: v}, true
	case float32:
		return numRange{lo: float64(v), hi: float64(v)}, true
	case int:
		return numRange{lo: float64(v), hi: float64(v)}, true
	case int64:
		return numRange{lo: float64(v), hi: float64(v)}, true
	case string:
		return parseRange(v)
	default:
		return numRange{}, false
	}
}
