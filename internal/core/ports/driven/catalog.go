package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// EvidenceRecord is a persisted evidence unit with its embedding.
type EvidenceRecord struct {
	// Position is the evidence index shared with the vector index.
	Position  int
	ItemID    string
	Text      string
	Embedding []float32
}

// CatalogInfo summarises the stored catalog.
type CatalogInfo struct {
	Items      int
	Evidence   int
	Model      string
	Dimensions int
	ImportedAt time.Time
}

// CatalogRepository persists items and evidence.
// Backed by SQLite. Read once at startup to build the in-memory stores.
type CatalogRepository interface {
	// SaveItems stores or updates items, keeping their catalog order.
	SaveItems(ctx context.Context, items []domain.Item) error

	// SaveEvidence stores evidence records.
	SaveEvidence(ctx context.Context, records []EvidenceRecord) error

	// LoadItems returns every item in catalog order.
	LoadItems(ctx context.Context) ([]domain.Item, error)

	// LoadEvidence returns every evidence record ordered by position.
	LoadEvidence(ctx context.Context) ([]EvidenceRecord, error)

	// SetEmbeddingModel records the model and size the evidence was embedded with.
	SetEmbeddingModel(ctx context.Context, model string, dimensions int) error

	// Info returns counts and the recorded embedding model.
	Info(ctx context.Context) (CatalogInfo, error)

	// ReplaceCatalog atomically replaces every item, evidence record and the
	// recorded embedding model. A failed replace keeps the previous catalog.
	ReplaceCatalog(ctx context.Context, items []domain.Item, records []EvidenceRecord, model string, dimensions int) error

	// Clear removes all items and evidence.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
