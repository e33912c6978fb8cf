// Package qdrant provides a vector index backed by a Qdrant collection.
//
// Point ids are evidence positions and the collection uses dot-product
// distance, so an exact query returns the same scores as the dense index.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default values.
const (
	DefaultPort       = 6334
	DefaultCollection = "sercha_rec_evidence"
	upsertBatchSize   = 256
	payloadItemID     = "item_id"
)

// Client is the subset of *qdrant.Client the index uses.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "localhost:6334" or "https://example.qdrant.io:6334").
	URL string

	// APIKey is optional API key for authentication.
	APIKey string

	// Collection holds the evidence embeddings.
	Collection string

	// Dimensions is the embedding size.
	Dimensions int
}

// Index scores queries with exact searches against a Qdrant collection.
type Index struct {
	mu         sync.RWMutex
	client     Client
	collection string
	dim        int
	n          int
}

// Open connects to Qdrant and attaches to the configured collection.
// A missing collection yields an empty index.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	idx, err := New(client, cfg.Collection, cfg.Dimensions)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := idx.Sync(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// newClient parses the URL to extract host, port and scheme.
func newClient(cfg Config) (*qdrant.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", domain.ErrInvalidInput)
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse qdrant url: %w", domain.ErrInvalidInput, err)
	}

	port := DefaultPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid qdrant port: %w", domain.ErrInvalidInput, err)
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create qdrant client: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return client, nil
}

// New wraps an existing client. Call Sync or Upsert before scoring.
func New(client Client, collection string, dim int) (*Index, error) {
	if client == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dim)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{client: client, collection: collection, dim: dim}, nil
}

// Sync reads the number of stored points from the collection.
func (x *Index) Sync(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", domain.ErrVectorIndexUnavailable, x.collection, err)
	}

	n := 0
	if exists {
		count, err := x.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: x.collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("%w: count points: %w", domain.ErrVectorIndexUnavailable, err)
		}
		n = int(count)
	}

	x.mu.Lock()
	x.n = n
	x.mu.Unlock()

	logger.Debug("Qdrant collection %s holds %d vectors", x.collection, n)
	return nil
}

// Upsert replaces the collection with vectors, using each vector's
// position as its point id. itemIDs is stored as payload when given.
func (x *Index) Upsert(ctx context.Context, vectors [][]float32, itemIDs []string) error {
	if itemIDs != nil && len(itemIDs) != len(vectors) {
		return fmt.Errorf("%w: %d item ids for %d vectors", domain.ErrInvalidInput, len(itemIDs), len(vectors))
	}
	for i, v := range vectors {
		if err := domain.CheckDimensions(x.dim, len(v)); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
	}

	if err := x.recreate(ctx); err != nil {
		return err
	}

	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(vectors))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			point := &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
			}
			if itemIDs != nil {
				point.Payload = qdrant.NewValueMap(map[string]any{payloadItemID: itemIDs[i]})
			}
			points = append(points, point)
		}

		if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: x.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return fmt.Errorf("%w: upsert points %d-%d: %w", domain.ErrVectorIndexUnavailable, start, end-1, err)
		}
	}

	x.mu.Lock()
	x.n = len(vectors)
	x.mu.Unlock()

	logger.Debug("Upserted %d vectors into qdrant collection %s", len(vectors), x.collection)
	return nil
}

func (x *Index) recreate(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", domain.ErrVectorIndexUnavailable, x.collection, err)
	}
	if exists {
		if err := x.client.DeleteCollection(ctx, x.collection); err != nil {
			return fmt.Errorf("%w: delete collection %s: %w", domain.ErrVectorIndexUnavailable, x.collection, err)
		}
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(x.dim),
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", domain.ErrVectorIndexUnavailable, x.collection, err)
	}
	return nil
}

// ScoreAll runs one exact query over the whole collection and scatters
// the hits into an evidence-ordered score vector.
func (x *Index) ScoreAll(ctx context.Context, query []float32) ([]float32, error) {
	if err := domain.CheckDimensions(x.dim, len(query)); err != nil {
		return nil, err
	}

	x.mu.RLock()
	n := x.n
	x.mu.RUnlock()

	scores := make([]float32, n)
	if n == 0 {
		return scores, nil
	}

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(n)),
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query: %w", domain.ErrVectorIndexUnavailable, err)
	}

	for _, p := range points {
		pos := p.GetId().GetNum()
		if pos >= uint64(n) {
			logger.Warn("qdrant returned point %d outside the %d stored vectors", pos, n)
			continue
		}
		scores[pos] = p.GetScore()
	}
	return scores, nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.n
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	return x.dim
}

// Close releases the client connection.
func (x *Index) Close() error {
	return x.client.Close()
}
