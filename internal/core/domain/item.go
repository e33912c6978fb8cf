package domain

// Item is a recommendable catalog entry.
// Items are immutable once loaded and owned by the metadata store.
type Item struct {
	// ID is the opaque, case-sensitive, globally unique item identifier.
	ID string `json:"item_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Attributes holds structured metadata of arbitrary types.
	Attributes map[string]any `json:"attributes,omitempty"`

	// Images holds optional image references.
	Images []string `json:"images,omitempty"`
}

// Attribute returns the raw attribute value for key.
func (i *Item) Attribute(key string) (any, bool) {
	if i.Attributes == nil {
		return nil, false
	}
	v, ok := i.Attributes[key]
	return v, ok
}
