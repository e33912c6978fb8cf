package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// Import defaults.
const (
	DefaultEmbedBatchSize   = 64
	DefaultEmbedConcurrency = 4

	// maxLineBytes bounds a single catalog line.
	maxLineBytes = 8 << 20
)

// CatalogService imports catalogs: it embeds every review and persists
// items and evidence in item-grouped order.
type CatalogService struct {
	repo        driven.CatalogRepository
	embedder    driven.EmbeddingService
	writer      driven.VectorWriter
	batchSize   int
	concurrency int
}

// NewCatalogService creates a catalog service.
// The writer parameter is optional (can be nil); when set, vectors are
// also upserted into the external index.
func NewCatalogService(
	repo driven.CatalogRepository,
	embedder driven.EmbeddingService,
	writer driven.VectorWriter,
) *CatalogService {
	return &CatalogService{
		repo:        repo,
		embedder:    embedder,
		writer:      writer,
		batchSize:   DefaultEmbedBatchSize,
		concurrency: DefaultEmbedConcurrency,
	}
}

// SetBatching sets the embedding batch size and the number of batches in flight.
// Non-positive values keep the current setting.
func (s *CatalogService) SetBatching(batchSize, concurrency int) {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
}

// Info describes the stored catalog.
func (s *CatalogService) Info(ctx context.Context) (driven.CatalogInfo, error) {
	if s.repo == nil {
		return driven.CatalogInfo{}, fmt.Errorf("%w: catalog repository not configured", domain.ErrInvalidInput)
	}
	return s.repo.Info(ctx)
}

// Import replaces the stored catalog with the JSON Lines in r.
// Blank reviews are skipped; a malformed line or a duplicate item id
// aborts the import before anything is written, and a failed write keeps
// the previous catalog.
func (s *CatalogService) Import(ctx context.Context, r io.Reader) (*domain.ImportReport, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: catalog repository not configured", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	entries, err := ParseCatalog(r)
	if err != nil {
		return nil, err
	}

	report := &domain.ImportReport{
		Items:      len(entries),
		Model:      s.embedder.ModelName(),
		Dimensions: s.embedder.Dimensions(),
	}

	items := make([]domain.Item, len(entries))
	var itemIDs, texts []string
	for i, entry := range entries {
		items[i] = entry.Item
		for _, review := range entry.Reviews {
			review = strings.TrimSpace(review)
			if review == "" {
				report.Skipped++
				continue
			}
			itemIDs = append(itemIDs, entry.ID)
			texts = append(texts, review)
		}
	}
	report.Evidence = len(texts)

	logger.Section("Importing catalog")
	logger.Info("%d items, %d reviews, model %s", len(items), len(texts), report.Model)

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	records := make([]driven.EvidenceRecord, len(texts))
	for i := range texts {
		records[i] = driven.EvidenceRecord{
			Position:  i,
			ItemID:    itemIDs[i],
			Text:      texts[i],
			Embedding: vectors[i],
		}
	}

	if err := s.repo.ReplaceCatalog(ctx, items, records, report.Model, report.Dimensions); err != nil {
		return nil, fmt.Errorf("saving catalog: %w", err)
	}

	if s.writer != nil {
		if err := s.writer.Upsert(ctx, vectors, itemIDs); err != nil {
			return nil, fmt.Errorf("upserting vectors: %w", err)
		}
		report.Upserted = true
	}

	logger.Info("Imported %d items with %d evidence units", report.Items, report.Evidence)
	return report, nil
}

// embedAll embeds texts in batches, with a bounded number in flight.
func (s *CatalogService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	dims := s.embedder.Dimensions()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		g.Go(func() error {
			batch, err := s.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding reviews %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("%w: %d embeddings for %d reviews",
					domain.ErrEmbeddingUnavailable, len(batch), end-start)
			}
			for j, vec := range batch {
				if err := domain.CheckDimensions(dims, len(vec)); err != nil {
					return fmt.Errorf("review %d: %w", start+j, err)
				}
				vectors[start+j] = vec
			}
			logger.Debug("Embedded reviews %d-%d", start, end-1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// ParseCatalog reads one CatalogEntry per non-blank line.
func ParseCatalog(r io.Reader) ([]domain.CatalogEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var entries []domain.CatalogEntry
	seen := make(map[string]int)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var entry domain.CatalogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", domain.ErrInvalidInput, line, err)
		}
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: line %d: item_id is required", domain.ErrInvalidInput, line)
		}
		if prev, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: item %q already defined on line %d",
				domain.ErrInvalidInput, line, entry.ID, prev)
		}
		seen[entry.ID] = line
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return entries, nil
}
