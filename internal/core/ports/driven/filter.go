package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// Filter narrows the candidate item set given the conversation state.
// Filters are chained; each receives the view left by the previous one.
// A filter must be a pure function of (state, view).
type Filter interface {
	// Name returns the filter name for logging and configuration.
	Name() string

	// Apply returns the ids of view that satisfy the filter.
	Apply(ctx context.Context, state *domain.ConversationState, view MetadataView) (domain.IDSet, error)
}

// FilterChain applies an ordered sequence of filters.
type FilterChain interface {
	// Apply narrows candidates; a nil candidate set means every item.
	Apply(ctx context.Context, state *domain.ConversationState, candidates domain.IDSet) (domain.IDSet, error)
}
