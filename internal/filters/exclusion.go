package filters

import (
	"context"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Ensure ExclusionFilter implements the interface.
var _ driven.Filter = (*ExclusionFilter)(nil)

// ExclusionFilter drops items already recommended earlier in the dialogue.
// Entries match an item id exactly or an item name case-insensitively.
type ExclusionFilter struct {
	name string
}

// NewExclusion creates an exclusion filter.
func NewExclusion(name string) *ExclusionFilter {
	return &ExclusionFilter{name: name}
}

// Name returns the filter name.
func (f *ExclusionFilter) Name() string {
	return f.name
}

// Apply keeps the items of view not listed in state.AlreadyRecommended.
func (f *ExclusionFilter) Apply(
	_ context.Context,
	state *domain.ConversationState,
	view driven.MetadataView,
) (domain.IDSet, error) {
	if state == nil || len(state.AlreadyRecommended) == 0 {
		return view.IDs(), nil
	}

	seenIDs := domain.NewIDSet(state.AlreadyRecommended...)
	seenNames := domain.NewIDSet(normalizeAll(state.AlreadyRecommended)...)

	ids := domain.NewIDSet()
	for _, item := range view.Items() {
		if seenIDs.Contains(item.ID) || seenNames.Contains(normalize(item.Name)) {
			continue
		}
		ids.Add(item.ID)
	}
	return ids, nil
}
