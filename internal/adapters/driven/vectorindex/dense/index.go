// Package dense provides an in-memory vector index that scores a query
// against every stored embedding with one matrix-vector product.
package dense

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores evidence embeddings as a row-major N×D matrix.
//
// Rows are appended with Add while building. After Freeze the index is
// immutable and safe for concurrent ScoreAll calls.
type Index struct {
	mu     sync.RWMutex
	dim    int
	rows   int
	data   []float32
	frozen bool
}

// New creates an empty index for vectors of size dim.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dim)
	}
	return &Index{dim: dim}, nil
}

// FromVectors builds a frozen index from vectors, in order.
func FromVectors(dim int, vectors [][]float32) (*Index, error) {
	idx, err := New(dim)
	if err != nil {
		return nil, err
	}
	idx.data = make([]float32, 0, len(vectors)*dim)
	if err := idx.Add(vectors...); err != nil {
		return nil, err
	}
	idx.Freeze()
	return idx, nil
}

// Add appends vectors as the next rows. Row i scores evidence position i.
// No row is added when any vector has the wrong size.
func (x *Index) Add(vectors ...[]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.frozen {
		return fmt.Errorf("%w: index is frozen", domain.ErrInvalidInput)
	}
	for i, v := range vectors {
		if err := domain.CheckDimensions(x.dim, len(v)); err != nil {
			return fmt.Errorf("vector %d: %w", x.rows+i, err)
		}
	}
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	x.rows += len(vectors)
	return nil
}

// Freeze makes the index read-only.
func (x *Index) Freeze() {
	x.mu.Lock()
	x.frozen = true
	x.mu.Unlock()
}

// ScoreAll returns the inner product of query with every row.
func (x *Index) ScoreAll(ctx context.Context, query []float32) ([]float32, error) {
	if err := domain.CheckDimensions(x.dim, len(query)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	scores := make([]float32, x.rows)
	for r := 0; r < x.rows; r++ {
		row := x.data[r*x.dim : (r+1)*x.dim]
		var sum float32
		for j, q := range query {
			sum += row[j] * q
		}
		scores[r] = sum
	}
	return scores, nil
}

// Vector returns a copy of row i.
func (x *Index) Vector(i int) ([]float32, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if i < 0 || i >= x.rows {
		return nil, fmt.Errorf("%w: vector %d", domain.ErrNotFound, i)
	}
	out := make([]float32, x.dim)
	copy(out, x.data[i*x.dim:(i+1)*x.dim])
	return out, nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.rows
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	return x.dim
}

// Close releases the matrix.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.data = nil
	x.rows = 0
	return nil
}
