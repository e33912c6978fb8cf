package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// RetrievalService selects and ranks items for a dialogue turn.
type RetrievalService interface {
	// GetBestMatchingItems filters, ranks and hydrates items for query.
	// Returns domain.ErrNoMatchingItems when nothing eligible matches.
	GetBestMatchingItems(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.Recommendation, error)

	// GetBestMatchingEvidenceOfItem fetches the n best evidence snippets
	// for each of the allowed, already-known items.
	GetBestMatchingEvidenceOfItem(
		ctx context.Context, query string, n int, allowed domain.IDSet,
	) (*domain.Recommendation, error)

	// GetItem returns the catalog record of an item, or domain.ErrNotFound.
	GetItem(id string) (*domain.Item, error)
}
