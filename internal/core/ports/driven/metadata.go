package driven

import "github.com/custodia-labs/sercha-rec/internal/core/domain"

// MetadataView is a read-only, ordered subset of the catalog.
// Filters receive a view narrowed by every filter before them.
type MetadataView interface {
	// Items returns the items of the view in catalog order.
	Items() []domain.Item

	// IDs returns the item ids of the view.
	IDs() domain.IDSet

	// Len returns the number of items in the view.
	Len() int

	// Restrict returns the view narrowed to ids.
	Restrict(ids domain.IDSet) MetadataView
}

// MetadataStore holds one record per item.
// It is populated once at startup and is safe for concurrent reads.
type MetadataStore interface {
	// Get returns the item with the given id, or domain.ErrNotFound.
	Get(id string) (*domain.Item, error)

	// At returns the item at catalog position i, or domain.ErrNotFound.
	At(i int) (*domain.Item, error)

	// Len returns the number of items.
	Len() int

	// View returns the items in ids. A nil set returns every item.
	View(ids domain.IDSet) MetadataView
}
