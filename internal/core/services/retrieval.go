package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rec/internal/logger"
	"github.com/custodia-labs/sercha-rec/internal/metrics"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Operation labels for metrics and logs.
const (
	opItems    = "items"
	opEvidence = "evidence"
)

// RetrievalService composes the filter chain, ranking engine and metadata
// store into hydrated recommendations.
type RetrievalService struct {
	corpus   *domain.EvidenceCorpus
	ranker   *RankingEngine
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	store    driven.MetadataStore
	chain    driven.FilterChain
	metrics  *metrics.Metrics
	defaults domain.RankOptions
}

// NewRetrievalService creates a retrieval service.
//
// The vector index must hold one vector per corpus evidence unit and share
// the embedding service's dimensionality. The chain parameter is optional
// (can be nil); without it conversation state is ignored.
func NewRetrievalService(
	corpus *domain.EvidenceCorpus,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	store driven.MetadataStore,
	chain driven.FilterChain,
) (*RetrievalService, error) {
	if corpus == nil || store == nil {
		return nil, fmt.Errorf("%w: corpus and metadata store are required", domain.ErrInvalidInput)
	}
	if index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if index.Len() != corpus.Len() {
		return nil, fmt.Errorf("%w: vector index holds %d vectors for %d evidence units",
			domain.ErrCatalogDrift, index.Len(), corpus.Len())
	}
	if err := domain.CheckDimensions(index.Dimensions(), embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("embedding model %s: %w", embedder.ModelName(), err)
	}

	return &RetrievalService{
		corpus:   corpus,
		ranker:   NewRankingEngine(corpus),
		index:    index,
		embedder: embedder,
		store:    store,
		chain:    chain,
		defaults: domain.DefaultRankOptions(),
	}, nil
}

// SetMetrics sets the metrics recorder.
func (s *RetrievalService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetDefaults sets the ranking options used when a call passes none.
func (s *RetrievalService) SetDefaults(opts domain.RankOptions) {
	s.defaults = opts
}

// GetBestMatchingItems filters candidates by the conversation state, ranks
// them against the query and hydrates the surfaced items.
func (s *RetrievalService) GetBestMatchingItems(
	ctx context.Context, query string, opts domain.RetrievalOptions,
) (*domain.Recommendation, error) {
	rankOpts := opts.Rank
	if rankOpts == (domain.RankOptions{}) {
		rankOpts = s.defaults
	}
	return s.retrieve(ctx, opItems, query, opts.Allowed, opts.State, rankOpts)
}

// GetBestMatchingEvidenceOfItem returns the n best evidence snippets of each
// allowed item, one item per group. It ranks exactly the allowed items and
// does not run the filter chain.
func (s *RetrievalService) GetBestMatchingEvidenceOfItem(
	ctx context.Context, query string, n int, allowed domain.IDSet,
) (*domain.Recommendation, error) {
	if allowed == nil {
		return nil, fmt.Errorf("%w: item ids are required", domain.ErrInvalidInput)
	}
	if allowed.Len() == 0 {
		return nil, domain.ErrNoMatchingItems
	}
	rankOpts := domain.RankOptions{
		TopKItems:           allowed.Len(),
		TopKEvidence:        n,
		TieTolerance:        0,
		MaxItemsPerTieGroup: 1,
	}
	return s.retrieve(ctx, opEvidence, query, allowed, nil, rankOpts)
}

// GetItem returns the catalog record of an item.
func (s *RetrievalService) GetItem(id string) (*domain.Item, error) {
	return s.store.Get(id)
}

// Defaults returns the ranking options used when a call passes none.
func (s *RetrievalService) Defaults() domain.RankOptions {
	return s.defaults
}

func (s *RetrievalService) retrieve(
	ctx context.Context,
	op string,
	query string,
	allowed domain.IDSet,
	state *domain.ConversationState,
	opts domain.RankOptions,
) (rec *domain.Recommendation, err error) {
	requestID := uuid.NewString()
	start := time.Now()
	defer func() {
		s.metrics.RecordRetrieval(op, outcome(err), time.Since(start))
		logger.Log(slog.LevelDebug, "retrieval finished",
			"request_id", requestID, "op", op, "outcome", outcome(err),
			"elapsed", time.Since(start).Round(time.Microsecond))
	}()

	logger.Section("Retrieval")
	logger.Log(slog.LevelDebug, "retrieval started", "request_id", requestID, "op", op, "query", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if state != nil && s.chain != nil && !state.IsEmpty() {
		allowed, err = s.chain.Apply(ctx, state, allowed)
		if err != nil {
			return nil, fmt.Errorf("filter candidates: %w", err)
		}
	}
	if allowed != nil {
		s.metrics.RecordCandidates(allowed.Len())
		logger.Debug("Candidates after filtering: %d", allowed.Len())
		if allowed.Len() == 0 {
			return nil, domain.ErrNoMatchingItems
		}
	} else {
		s.metrics.RecordCandidates(s.store.Len())
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scores, err := s.index.ScoreAll(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("score evidence: %w", err)
	}

	ranking, err := s.ranker.Rank(scores, allowed, opts)
	if err != nil {
		return nil, err
	}

	rec, err = s.hydrate(requestID, query, ranking)
	if err != nil {
		return nil, err
	}

	logger.Debug("Surfaced %d items in %d groups", rec.Len(), len(rec.Groups))
	return rec, nil
}

// hydrate resolves ranked ids into full item records with evidence text.
func (s *RetrievalService) hydrate(requestID, query string, ranking *domain.Ranking) (*domain.Recommendation, error) {
	rec := &domain.Recommendation{
		Query:  query,
		Groups: make([][]domain.RecommendedItem, 0, len(ranking.Groups)),
	}

	for _, group := range ranking.Groups {
		items := make([]domain.RecommendedItem, 0, len(group.Items))
		for _, ranked := range group.Items {
			item, err := s.store.Get(ranked.ItemID)
			if err != nil {
				logger.Log(slog.LevelError, "ranked item missing from metadata store",
					"request_id", requestID, "item_id", ranked.ItemID, "error", err)
				return nil, fmt.Errorf("%w: item %q", domain.ErrCatalogDrift, ranked.ItemID)
			}

			evidence := make([]domain.EvidenceSnippet, 0, len(ranked.EvidenceIndices))
			for i, idx := range ranked.EvidenceIndices {
				ev, err := s.corpus.At(idx)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", domain.ErrCatalogDrift, err)
				}
				evidence = append(evidence, domain.EvidenceSnippet{
					Index: idx,
					Text:  ev.Text,
					Score: ranked.EvidenceScores[i],
				})
			}

			items = append(items, domain.RecommendedItem{
				Item:     *item,
				Query:    query,
				Score:    ranked.Score,
				Evidence: evidence,
			})
		}
		rec.Groups = append(rec.Groups, items)
	}

	return rec, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrNoMatchingItems):
		return metrics.OutcomeNoMatch
	default:
		return metrics.OutcomeError
	}
}
