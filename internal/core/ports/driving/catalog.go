package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// CatalogService loads catalogs into persistent storage.
type CatalogService interface {
	// Import replaces the stored catalog with the JSON Lines in r,
	// embedding every review.
	Import(ctx context.Context, r io.Reader) (*domain.ImportReport, error)

	// Info describes the stored catalog.
	Info(ctx context.Context) (driven.CatalogInfo, error)
}
