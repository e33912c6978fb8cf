package driven

import "context"

// VectorIndex scores a query against every stored evidence embedding.
// Backed by an in-memory matrix or by an external Qdrant collection;
// both must return the same scores within floating-point tolerance.
type VectorIndex interface {
	// ScoreAll returns one similarity (inner product) per stored evidence
	// unit, in evidence order. The result always has Len() entries; entries
	// the backend did not return are zero.
	// A query of the wrong size fails with domain.ErrDimensionMismatch.
	ScoreAll(ctx context.Context, query []float32) ([]float32, error)

	// Len returns the number of stored evidence embeddings.
	Len() int

	// Dimensions returns the embedding size.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// VectorWriter replaces the contents of an external vector index.
// Only backends that persist outside the process implement it.
type VectorWriter interface {
	// Upsert stores vectors at their slice positions. itemIDs, when given,
	// is stored alongside each vector.
	Upsert(ctx context.Context, vectors [][]float32, itemIDs []string) error
}
