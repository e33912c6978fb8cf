package domain

// CatalogEntry is one line of a catalog import file.
type CatalogEntry struct {
	Item

	// Reviews are the evidence texts of the item, in order.
	Reviews []string `json:"reviews,omitempty"`
}

// ImportReport summarises a catalog import.
type ImportReport struct {
	Items      int
	Evidence   int
	Skipped    int
	Model      string
	Dimensions int

	// Upserted is true when vectors were also written to an external index.
	Upserted bool
}
