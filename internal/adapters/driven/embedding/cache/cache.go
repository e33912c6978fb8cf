// Package cache provides a Redis read-through cache in front of an
// embedding service.
//
// Cache failures never fail a call: when Redis is unreachable the
// wrapped provider is used directly.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
	"github.com/custodia-labs/sercha-rec/internal/metrics"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// KeyPrefix namespaces cache entries.
const KeyPrefix = "sercha-rec:emb:"

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// EmbeddingService decorates an embedding service with a Redis cache.
type EmbeddingService struct {
	inner   driven.EmbeddingService
	client  Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

// New wraps inner with a cache backed by client.
// The metrics parameter is optional (can be nil).
func New(inner driven.EmbeddingService, client Client, ttl time.Duration, m *metrics.Metrics) *EmbeddingService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmbeddingService{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: m,
	}
}

// Open connects to redisURL (redis://host:port/db) and wraps inner.
// The connection is lazy; an unreachable server degrades to inner.
func Open(inner driven.EmbeddingService, redisURL string, ttl time.Duration, m *metrics.Metrics) (*EmbeddingService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %w", domain.ErrInvalidInput, err)
	}
	return New(inner, redis.NewClient(opts), ttl, m), nil
}

// Key returns the cache key of text embedded by model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or embeds and caches it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(s.inner.ModelName(), text)

	val, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if vec, ok := s.decode(key, val); ok {
			s.metrics.RecordCache(metrics.CacheHit)
			return vec, nil
		}
		s.metrics.RecordCache(metrics.CacheMiss)
	case errors.Is(err, redis.Nil):
		s.metrics.RecordCache(metrics.CacheMiss)
	default:
		s.metrics.RecordCache(metrics.CacheError)
		logger.Warn("embedding cache unavailable: %v", err)
	}

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch serves cached vectors and embeds the rest in one inner call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := s.inner.ModelName()
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = Key(model, text)
	}

	result := make([][]float32, len(texts))
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.metrics.RecordCache(metrics.CacheError)
		logger.Warn("embedding cache unavailable: %v", err)
		vals = nil
	}

	var missing []int
	for i := range texts {
		if i < len(vals) {
			if str, ok := vals[i].(string); ok {
				if vec, ok := s.decode(keys[i], str); ok {
					s.metrics.RecordCache(metrics.CacheHit)
					result[i] = vec
					continue
				}
			}
		}
		if err == nil {
			s.metrics.RecordCache(metrics.CacheMiss)
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	embedded, err := s.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(pending) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d texts",
			domain.ErrEmbeddingUnavailable, len(embedded), len(pending))
	}
	for j, i := range missing {
		result[i] = embedded[j]
		s.store(ctx, keys[i], embedded[j])
	}

	return result, nil
}

// decode parses a cached entry. Entries of the wrong size are ignored.
func (s *EmbeddingService) decode(key, val string) ([]float32, bool) {
	var vec []float32
	if err := json.Unmarshal([]byte(val), &vec); err != nil {
		logger.Warn("embedding cache entry %s is corrupt: %v", key, err)
		return nil, false
	}
	if len(vec) != s.inner.Dimensions() {
		logger.Warn("embedding cache entry %s has %d dimensions, want %d", key, len(vec), s.inner.Dimensions())
		return nil, false
	}
	return vec, true
}

func (s *EmbeddingService) store(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.metrics.RecordCache(metrics.CacheError)
		logger.Warn("embedding cache write failed: %v", err)
	}
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped provider. An unreachable cache only logs a warning.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		logger.Warn("embedding cache unreachable, continuing without it: %v", err)
	}
	return s.inner.Ping(ctx)
}

// Close releases the Redis connection and the wrapped service.
func (s *EmbeddingService) Close() error {
	return errors.Join(s.client.Close(), s.inner.Close())
}
