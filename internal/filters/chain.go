// Package filters provides the candidate filters applied before ranking.
package filters

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// Ensure Chain implements the interface.
var _ driven.FilterChain = (*Chain)(nil)

// Chain applies filters left to right over a metadata store.
// Each filter sees the view left by the previous one; the chain stops as
// soon as no candidate remains. A Chain holds no per-call state.
type Chain struct {
	store   driven.MetadataStore
	filters []driven.Filter
}

// NewChain creates a chain over store. Filters run in the order provided.
func NewChain(store driven.MetadataStore, filters ...driven.Filter) *Chain {
	return &Chain{
		store:   store,
		filters: filters,
	}
}

// Apply narrows candidates given the conversation state.
// A nil candidate set starts from every item in the store.
func (c *Chain) Apply(
	ctx context.Context,
	state *domain.ConversationState,
	candidates domain.IDSet,
) (domain.IDSet, error) {
	view := c.store.View(candidates)

	for _, f := range c.filters {
		if view.Len() == 0 {
			logger.Debug("Filter chain: no candidates left before %s", f.Name())
			break
		}
		before := view.Len()
		ids, err := f.Apply(ctx, state, view)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name(), err)
		}
		view = view.Restrict(ids)
		logger.Debug("Filter %s: %d -> %d candidates", f.Name(), before, view.Len())
	}

	return view.IDs(), nil
}

// Names returns the filter names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}
