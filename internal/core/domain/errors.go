package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown filter, backend or provider type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNoMatchingItems indicates no eligible item scored above zero.
	// It is an expected outcome: callers render a fallback response.
	// It also matches ErrNotFound.
	ErrNoMatchingItems = fmt.Errorf("no matching items: %w", ErrNotFound)

	// ErrDimensionMismatch indicates a query vector does not match the
	// dimensionality of the stored embeddings.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrCatalogDrift indicates the ranking surfaced an item id the metadata
	// store does not know. The vector index and metadata store are out of sync.
	ErrCatalogDrift = errors.New("catalog drift: item missing from metadata store")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// DimensionMismatchError carries the expected and received vector sizes.
// It matches ErrDimensionMismatch with errors.Is.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

// Error implements error.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d dimensions, got %d", ErrDimensionMismatch, e.Expected, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimensions returns a DimensionMismatchError when got != expected.
func CheckDimensions(expected, got int) error {
	if expected != got {
		return &DimensionMismatchError{Expected: expected, Got: got}
	}
	return nil
}
