package memory

import (
	"fmt"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// Ensure View implements the interface.
var _ driven.MetadataView = (*View)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
// It is built once from the catalog and never mutated, so reads need no locking.
type MetadataStore struct {
	items []domain.Item
	byID  map[string]int
}

// NewMetadataStore creates a store over items in catalog order.
// Item ids must be non-empty and unique.
func NewMetadataStore(items []domain.Item) (*MetadataStore, error) {
	s := &MetadataStore{
		items: make([]domain.Item, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: item at position %d has no id", domain.ErrInvalidInput, i)
		}
		if _, dup := s.byID[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %q", domain.ErrInvalidInput, item.ID)
		}
		s.items[i] = item
		s.byID[item.ID] = i
	}
	return s, nil
}

// Get returns the item with the given id.
func (s *MetadataStore) Get(id string) (*domain.Item, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item := s.items[i]
	return &item, nil
}

// At returns the item at catalog position i.
func (s *MetadataStore) At(i int) (*domain.Item, error) {
	if i < 0 || i >= len(s.items) {
		return nil, domain.ErrNotFound
	}
	item := s.items[i]
	return &item, nil
}

// Len returns the number of items.
func (s *MetadataStore) Len() int {
	return len(s.items)
}

// View returns the items in ids, in catalog order. Unknown ids are ignored.
func (s *MetadataStore) View(ids domain.IDSet) driven.MetadataView {
	all := &View{store: s, positions: allPositions(s)}
	if ids == nil {
		return all
	}
	return all.restrictFrom(all.positions, ids)
}

// View is an ordered subset of a MetadataStore, addressed by catalog position.
type View struct {
	store     *MetadataStore
	positions []int
}

// Items returns the items of the view in catalog order.
func (v *View) Items() []domain.Item {
	items := make([]domain.Item, len(v.positions))
	for i, p := range v.positions {
		items[i] = v.store.items[p]
	}
	return items
}

// IDs returns the item ids of the view.
func (v *View) IDs() domain.IDSet {
	ids := make(domain.IDSet, len(v.positions))
	for _, p := range v.positions {
		ids.Add(v.store.items[p].ID)
	}
	return ids
}

// Len returns the number of items in the view.
func (v *View) Len() int {
	return len(v.positions)
}

// Restrict returns the items of v that are also in ids.
// A nil set returns v unchanged.
func (v *View) Restrict(ids domain.IDSet) driven.MetadataView {
	if ids == nil {
		return v
	}
	return v.restrictFrom(v.positions, ids)
}

func (v *View) restrictFrom(positions []int, ids domain.IDSet) *View {
	kept := make([]int, 0, min(len(positions), len(ids)))
	for _, p := range positions {
		if ids.Contains(v.store.items[p].ID) {
			kept = append(kept, p)
		}
	}
	return &View{store: v.store, positions: kept}
}

func allPositions(s *MetadataStore) []int {
	positions := make([]int, len(s.items))
	for i := range positions {
		positions[i] = i
	}
	return positions
}
