package filters

import (
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Matcher reports whether a normalised constraint value matches a
// normalised metadata value.
type Matcher func(constraint, value string) bool

// ExactMatch matches equal strings.
func ExactMatch(constraint, value string) bool {
	return constraint == value
}

// WordInMatch matches when either string contains the other, trying the
// singular and plural form of each side.
func WordInMatch(constraint, value string) bool {
	for _, c := range wordForms(constraint) {
		for _, v := range wordForms(value) {
			if c == v || strings.Contains(v, c) || strings.Contains(c, v) {
				return true
			}
		}
	}
	return false
}

func wordForms(s string) []string {
	forms := []string{s}
	if singular := inflection.Singular(s); singular != s {
		forms = append(forms, singular)
	}
	if plural := inflection.Plural(s); plural != s {
		forms = append(forms, plural)
	}
	return forms
}

// normalize lower-cases and trims s.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAll normalises values and drops the empty ones.
func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// attributeValues flattens a metadata value into normalised strings.
// Strings are split on commas; slices are flattened; numbers and booleans
// are formatted.
func attributeValues(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return normalizeAll(strings.Split(v, ","))
	case []string:
		var out []string
		for _, s := range v {
			out = append(out, attributeValues(s)...)
		}
		return out
	case []any:
		var out []string
		for _, e := range v {
			out = append(out, attributeValues(e)...)
		}
		return out
	case bool:
		return []string{strconv.FormatBool(v)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case float32:
		return []string{strconv.FormatFloat(float64(v), 'f', -1, 32)}
	case int:
		return []string{strconv.Itoa(v)}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	default:
		return nil
	}
}

// matchesAll reports whether every constraint matches at least one value.
func matchesAll(constraints, values []string, m Matcher) bool {
	for _, c := range constraints {
		if !matchesAny([]string{c}, values, m) {
			return false
		}
	}
	return true
}

// matchesAny reports whether any constraint matches any value.
func matchesAny(constraints, values []string, m Matcher) bool {
	for _, c := range constraints {
		for _, v := range values {
			if m(c, v) {
				return true
			}
		}
	}
	return false
}

// selectWithFallback keeps the items whose field matches every constraint.
// When no item does, it keeps the items matching any constraint instead.
func selectWithFallback(view driven.MetadataView, field string, constraints []string, m Matcher) (domain.IDSet, bool) {
	items := view.Items()
	values := make([][]string, len(items))
	full := domain.NewIDSet()
	for i := range items {
		raw, _ := items[i].Attribute(field)
		values[i] = attributeValues(raw)
		if matchesAll(constraints, values[i], m) {
			full.Add(items[i].ID)
		}
	}
	if full.Len() > 0 {
		return full, false
	}

	partial := domain.NewIDSet()
	for i := range items {
		if matchesAny(constraints, values[i], m) {
			partial.Add(items[i].ID)
		}
	}
	return partial, true
}
