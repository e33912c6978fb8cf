package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/core/services"
	"github.com/custodia-labs/sercha-rec/internal/filters"
	"github.com/custodia-labs/sercha-rec/internal/logger"
	"github.com/custodia-labs/sercha-rec/internal/metrics"
)

// Engine holds a loaded catalog and the retrieval service built over it.
type Engine struct {
	Retrieval *services.RetrievalService
	Store     *memory.MetadataStore
	Corpus    *domain.EvidenceCorpus
	Chain     *filters.Chain
	Index     driven.VectorIndex
	Embedder  driven.EmbeddingService
	Catalog   driven.CatalogRepository
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	var errs []error
	if e.Index != nil {
		errs = append(errs, e.Index.Close())
	}
	if e.Embedder != nil {
		errs = append(errs, e.Embedder.Close())
	}
	if e.Catalog != nil {
		errs = append(errs, e.Catalog.Close())
	}
	return errors.Join(errs...)
}

// OpenEngine opens the catalog database in the configured data directory,
// connects the embedding provider and builds the retrieval service.
func OpenEngine(ctx context.Context, settings *domain.AppSettings, m *metrics.Metrics) (*Engine, error) {
	catalog, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	embedder, err := CreateAndValidateEmbeddingService(ctx, settings, m)
	if err != nil {
		catalog.Close()
		return nil, err
	}

	engine, err := BuildEngine(ctx, settings, catalog, embedder, m)
	if err != nil {
		embedder.Close()
		catalog.Close()
		return nil, err
	}
	return engine, nil
}

// BuildEngine loads the stored catalog and wires the metadata store,
// vector index, filter chain and retrieval service.
// On success the engine owns catalog and embedder.
func BuildEngine(
	ctx context.Context,
	settings *domain.AppSettings,
	catalog driven.CatalogRepository,
	embedder driven.EmbeddingService,
	m *metrics.Metrics,
) (*Engine, error) {
	info, err := catalog.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog info: %w", err)
	}
	if info.Model == "" && (info.Items > 0 || info.Evidence > 0) {
		return nil, fmt.Errorf("%w: catalog holds %d items but no embedding model. Re-run 'sercha-rec import'",
			domain.ErrCatalogDrift, info.Items)
	}
	if info.Model != "" && info.Model != embedder.ModelName() {
		return nil, fmt.Errorf("%w: catalog was embedded with %s but %s is configured. Re-run 'sercha-rec import'",
			domain.ErrCatalogDrift, info.Model, embedder.ModelName())
	}

	items, err := catalog.LoadItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	records, err := catalog.LoadEvidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading evidence: %w", err)
	}

	store, err := memory.NewMetadataStore(items)
	if err != nil {
		return nil, err
	}

	corpus, err := corpusFrom(records, store)
	if err != nil {
		return nil, err
	}

	index, err := CreateVectorIndex(ctx, settings.VectorIndex, embedder.Dimensions(), records)
	if err != nil {
		return nil, err
	}

	chain, err := buildChain(settings, store)
	if err != nil {
		index.Close()
		return nil, err
	}

	retrieval, err := services.NewRetrievalService(corpus, index, embedder, store, chain)
	if err != nil {
		index.Close()
		return nil, err
	}
	retrieval.SetDefaults(settings.Ranking)
	retrieval.SetMetrics(m)

	logger.Debug("Loaded %d items and %d evidence units (%s backend, filters: %v)",
		store.Len(), corpus.Len(), settings.VectorIndex.Backend, chain.Names())

	return &Engine{
		Retrieval: retrieval,
		Store:     store,
		Corpus:    corpus,
		Chain:     chain,
		Index:     index,
		Embedder:  embedder,
		Catalog:   catalog,
	}, nil
}

// corpusFrom checks evidence positions are dense and reference stored items.
func corpusFrom(records []driven.EvidenceRecord, store driven.MetadataStore) (*domain.EvidenceCorpus, error) {
	itemIDs := make([]string, len(records))
	texts := make([]string, len(records))
	for i, rec := range records {
		if rec.Position != i {
			return nil, fmt.Errorf("%w: evidence position %d stored at row %d", domain.ErrCatalogDrift, rec.Position, i)
		}
		if _, err := store.Get(rec.ItemID); err != nil {
			return nil, fmt.Errorf("%w: evidence %d references unknown item %q", domain.ErrCatalogDrift, i, rec.ItemID)
		}
		itemIDs[i] = rec.ItemID
		texts[i] = rec.Text
	}
	return domain.NewEvidenceCorpus(itemIDs, texts)
}

func buildChain(settings *domain.AppSettings, store driven.MetadataStore) (*filters.Chain, error) {
	geocoder, err := CreateGeocoder(settings.Geo)
	if err != nil {
		return nil, err
	}

	registry := filters.NewRegistry()
	filters.RegisterDefaults(registry, geocoder, settings.Geo.DefaultRadiusKm)

	chain, err := registry.BuildChain(store, settings.Filters)
	if err != nil {
		return nil, fmt.Errorf("building filter chain: %w", err)
	}
	return chain, nil
}

// Importer holds a catalog service and the resources it owns.
type Importer struct {
	Service  *services.CatalogService
	catalog  driven.CatalogRepository
	embedder driven.EmbeddingService
	writer   driven.VectorIndex
}

// Close releases the importer's resources.
func (i *Importer) Close() error {
	var errs []error
	if i.writer != nil {
		errs = append(errs, i.writer.Close())
	}
	if i.embedder != nil {
		errs = append(errs, i.embedder.Close())
	}
	if i.catalog != nil {
		errs = append(errs, i.catalog.Close())
	}
	return errors.Join(errs...)
}

// OpenImporter wires a catalog service for the configured storage,
// embedding provider and, for the qdrant backend, the external index.
func OpenImporter(ctx context.Context, settings *domain.AppSettings, m *metrics.Metrics) (*Importer, error) {
	catalog, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	imp := &Importer{catalog: catalog}

	imp.embedder, err = CreateAndValidateEmbeddingService(ctx, settings, m)
	if err != nil {
		imp.Close()
		return nil, err
	}

	var writer driven.VectorWriter
	qidx, err := CreateVectorWriter(ctx, settings.VectorIndex, imp.embedder.Dimensions())
	if err != nil {
		imp.Close()
		return nil, err
	}
	if qidx != nil {
		imp.writer = qidx
		writer = qidx
	}

	imp.Service = services.NewCatalogService(catalog, imp.embedder, writer)
	return imp, nil
}
