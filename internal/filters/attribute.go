package filters

import (
	"context"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// Ensure AttributeFilter implements the interface.
var _ driven.Filter = (*AttributeFilter)(nil)

// AttributeFilter matches a metadata attribute against the values requested
// for one constraint key.
//
// Items matching every requested value are kept. When none does, the filter
// widens to items matching any requested value rather than returning nothing.
type AttributeFilter struct {
	name    string
	field   string
	key     string
	matcher Matcher
}

// NewExact creates an attribute filter using case-insensitive equality.
func NewExact(name, field, key string) *AttributeFilter {
	return &AttributeFilter{name: name, field: field, key: key, matcher: ExactMatch}
}

// NewWordIn creates an attribute filter using containment with
// singular/plural forms.
func NewWordIn(name, field, key string) *AttributeFilter {
	return &AttributeFilter{name: name, field: field, key: key, matcher: WordInMatch}
}

// Name returns the filter name.
func (f *AttributeFilter) Name() string {
	return f.name
}

// Apply keeps the items of view that match the requested values.
// A state with no values for the key leaves the view unchanged.
func (f *AttributeFilter) Apply(
	_ context.Context,
	state *domain.ConversationState,
	view driven.MetadataView,
) (domain.IDSet, error) {
	constraints := normalizeAll(state.ValuesFor(f.key))
	if len(constraints) == 0 {
		return view.IDs(), nil
	}

	ids, widened := selectWithFallback(view, f.field, constraints, f.matcher)
	if widened {
		logger.Debug("Filter %s: no item matches all of %v, kept %d partial matches",
			f.name, constraints, ids.Len())
	}
	return ids, nil
}
