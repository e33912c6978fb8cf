package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/metrics"
)

// mockVectorIndex returns fixed scores.
type mockVectorIndex struct {
	scores []float32
	dims   int
	err    error
	calls  int
}

func (m *mockVectorIndex) ScoreAll(_ context.Context, query []float32) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if err := domain.CheckDimensions(m.dims, len(query)); err != nil {
		return nil, err
	}
	return m.scores, nil
}

func (m *mockVectorIndex) Len() int        { return len(m.scores) }
func (m *mockVectorIndex) Dimensions() int { return m.dims }
func (m *mockVectorIndex) Close() error    { return nil }

// mockEmbeddingService returns a constant vector.
type mockEmbeddingService struct {
	dims    int
	err     error
	queries []string
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	return make([]float32, m.dims), nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return m.dims }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockMetadataStore serves items by id.
type mockMetadataStore struct {
	items map[string]domain.Item
}

func (m *mockMetadataStore) Get(id string) (*domain.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (m *mockMetadataStore) At(_ int) (*domain.Item, error)          { return nil, domain.ErrNotFound }
func (m *mockMetadataStore) Len() int                                { return len(m.items) }
func (m *mockMetadataStore) View(_ domain.IDSet) driven.MetadataView { return nil }

// mockFilterChain keeps a fixed set and records what it received.
type mockFilterChain struct {
	keep       domain.IDSet
	err        error
	calls      int
	candidates domain.IDSet
}

func (m *mockFilterChain) Apply(_ context.Context, _ *domain.ConversationState, candidates domain.IDSet) (domain.IDSet, error) {
	m.calls++
	m.candidates = candidates
	if m.err != nil {
		return nil, m.err
	}
	return m.keep, nil
}

type retrievalFixture struct {
	svc      *RetrievalService
	index    *mockVectorIndex
	embedder *mockEmbeddingService
	store    *mockMetadataStore
	chain    *mockFilterChain
}

// newRetrievalFixture builds a catalog of four items:
// a has evidence 0-1, b has 2, c has 3, d has 4.
func newRetrievalFixture(t *testing.T) *retrievalFixture {
	t.Helper()

	corpus, err := domain.NewEvidenceCorpus(
		[]string{"a", "a", "b", "c", "d"},
		[]string{"great tacos", "friendly staff", "good pasta", "fresh sushi", "ok burgers"},
	)
	require.NoError(t, err)

	f := &retrievalFixture{
		index:    &mockVectorIndex{scores: []float32{0.9, 0.7, 0.86, 0.3, 0.1}, dims: 4},
		embedder: &mockEmbeddingService{dims: 4},
		store: &mockMetadataStore{items: map[string]domain.Item{
			"a": {ID: "a", Name: "Taco Loco"},
			"b": {ID: "b", Name: "Pasta Place"},
			"c": {ID: "c", Name: "Sushi Bar"},
			"d": {ID: "d", Name: "Burger Joint"},
		}},
		chain: &mockFilterChain{},
	}
	f.svc, err = NewRetrievalService(corpus, f.index, f.embedder, f.store, f.chain)
	require.NoError(t, err)
	return f
}

func singleGroups(topK int) domain.RankOptions {
	return domain.RankOptions{TopKItems: topK, TopKEvidence: 2, TieTolerance: 0, MaxItemsPerTieGroup: 1}
}

func TestNewRetrievalService_Validation(t *testing.T) {
	corpus, err := domain.NewEvidenceCorpus([]string{"a", "b"}, []string{"x", "y"})
	require.NoError(t, err)
	store := &mockMetadataStore{}

	t.Run("missing index", func(t *testing.T) {
		_, err := NewRetrievalService(corpus, nil, &mockEmbeddingService{dims: 2}, store, nil)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	})

	t.Run("missing embedder", func(t *testing.T) {
		_, err := NewRetrievalService(corpus, &mockVectorIndex{scores: make([]float32, 2), dims: 2}, nil, store, nil)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("index out of sync with corpus", func(t *testing.T) {
		_, err := NewRetrievalService(corpus, &mockVectorIndex{scores: make([]float32, 3), dims: 2},
			&mockEmbeddingService{dims: 2}, store, nil)
		assert.ErrorIs(t, err, domain.ErrCatalogDrift)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := NewRetrievalService(corpus, &mockVectorIndex{scores: make([]float32, 2), dims: 2},
			&mockEmbeddingService{dims: 3}, store, nil)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		var dimErr *domain.DimensionMismatchError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Expected)
		assert.Equal(t, 3, dimErr.Got)
	})
}

func TestRetrievalService_GetBestMatchingItems(t *testing.T) {
	f := newRetrievalFixture(t)

	rec, err := f.svc.GetBestMatchingItems(context.Background(), "  tacos please ", domain.RetrievalOptions{
		Rank: singleGroups(2),
	})
	require.NoError(t, err)

	assert.Equal(t, "tacos please", rec.Query)
	assert.Equal(t, []string{"tacos please"}, f.embedder.queries)
	require.Len(t, rec.Groups, 2)

	// b scores 0.86 with one review; a scores mean(0.9, 0.7) = 0.8.
	top := rec.Groups[0][0]
	assert.Equal(t, "Pasta Place", top.Item.Name)
	assert.Equal(t, "tacos please", top.Query)
	assert.InDelta(t, 0.86, top.Score, 1e-6)

	second := rec.Groups[1][0]
	assert.Equal(t, "a", second.Item.ID)
	assert.InDelta(t, 0.8, second.Score, 1e-6)
	require.Len(t, second.Evidence, 2)
	assert.Equal(t, "great tacos", second.Evidence[0].Text)
	assert.Equal(t, 0, second.Evidence[0].Index)
	assert.Equal(t, "friendly staff", second.Evidence[1].Text)
}

func TestRetrievalService_GetBestMatchingItems_DefaultOptions(t *testing.T) {
	f := newRetrievalFixture(t)

	rec, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	require.NoError(t, err)

	// b (0.86) and a (0.8) are further apart than the 0.05 tolerance; d is cut by topk_items.
	require.Len(t, rec.Groups, 3)
	assert.Len(t, rec.Groups[0], 1)
	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, "c", rec.Groups[2][0].Item.ID)
}

func TestRetrievalService_GetBestMatchingItems_TieGroups(t *testing.T) {
	f := newRetrievalFixture(t)
	f.svc.SetDefaults(domain.RankOptions{TopKItems: 1, TopKEvidence: 1, TieTolerance: 0.1, MaxItemsPerTieGroup: 3})

	rec, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	require.NoError(t, err)

	require.Len(t, rec.Groups, 1)
	ids := []string{rec.Groups[0][0].Item.ID, rec.Groups[0][1].Item.ID}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestRetrievalService_GetBestMatchingItems_Allowed(t *testing.T) {
	f := newRetrievalFixture(t)

	rec, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{
		Rank:    singleGroups(3),
		Allowed: domain.NewIDSet("c", "d"),
	})
	require.NoError(t, err)

	var ids []string
	for _, it := range rec.Items() {
		ids = append(ids, it.Item.ID)
	}
	assert.Equal(t, []string{"c", "d"}, ids)
	assert.Equal(t, 0, f.chain.calls, "no state, no filtering")
}

func TestRetrievalService_GetBestMatchingItems_StateRunsFilterChain(t *testing.T) {
	f := newRetrievalFixture(t)
	f.chain.keep = domain.NewIDSet("d")
	state := &domain.ConversationState{AlreadyRecommended: []string{"a"}}

	rec, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{
		Rank:    singleGroups(3),
		Allowed: domain.NewIDSet("c", "d"),
		State:   state,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.chain.calls)
	assert.True(t, f.chain.candidates.Equal(domain.NewIDSet("c", "d")))
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, "d", rec.Groups[0][0].Item.ID)
}

func TestRetrievalService_GetBestMatchingItems_EmptyFilterResultSkipsEmbedding(t *testing.T) {
	f := newRetrievalFixture(t)
	f.chain.keep = domain.NewIDSet()
	state := &domain.ConversationState{Constraints: domain.Constraints{Values: map[string][]string{"cuisine": {"thai"}}}}

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{State: state})
	assert.ErrorIs(t, err, domain.ErrNoMatchingItems)
	assert.Empty(t, f.embedder.queries)
	assert.Equal(t, 0, f.index.calls)
}

func TestRetrievalService_GetBestMatchingItems_FilterError(t *testing.T) {
	f := newRetrievalFixture(t)
	boom := errors.New("geocoder exploded")
	f.chain.err = boom
	state := &domain.ConversationState{Constraints: domain.Constraints{Locations: []string{"soho"}}}

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{State: state})
	assert.ErrorIs(t, err, boom)
}

func TestRetrievalService_GetBestMatchingItems_NoMatch(t *testing.T) {
	f := newRetrievalFixture(t)

	rec, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{
		Rank:    singleGroups(3),
		Allowed: domain.NewIDSet("zzz"),
	})
	assert.ErrorIs(t, err, domain.ErrNoMatchingItems)
	assert.Nil(t, rec)
}

func TestRetrievalService_GetBestMatchingItems_EmptyQuery(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.GetBestMatchingItems(context.Background(), "   ", domain.RetrievalOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrievalService_GetBestMatchingItems_InvalidOptions(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{
		Rank: domain.RankOptions{TopKItems: -1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrievalService_GetBestMatchingItems_EmbeddingError(t *testing.T) {
	f := newRetrievalFixture(t)
	f.embedder.err = domain.ErrEmbeddingUnavailable

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestRetrievalService_GetBestMatchingItems_IndexError(t *testing.T) {
	f := newRetrievalFixture(t)
	f.index.err = &domain.DimensionMismatchError{Expected: 4, Got: 3}

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestRetrievalService_GetBestMatchingItems_CatalogDrift(t *testing.T) {
	f := newRetrievalFixture(t)
	delete(f.store.items, "b")

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	assert.ErrorIs(t, err, domain.ErrCatalogDrift)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestRetrievalService_GetBestMatchingEvidenceOfItem(t *testing.T) {
	f := newRetrievalFixture(t)

	rec, err := f.svc.GetBestMatchingEvidenceOfItem(context.Background(), "service", 1, domain.NewIDSet("a", "c"))
	require.NoError(t, err)

	require.Len(t, rec.Groups, 2, "one group per allowed item")
	for _, g := range rec.Groups {
		assert.Len(t, g, 1)
	}
	assert.Equal(t, "a", rec.Groups[0][0].Item.ID)
	require.Len(t, rec.Groups[0][0].Evidence, 1)
	assert.Equal(t, "great tacos", rec.Groups[0][0].Evidence[0].Text)
	assert.Equal(t, "c", rec.Groups[1][0].Item.ID)
}

func TestRetrievalService_GetBestMatchingEvidenceOfItem_InvalidInput(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.GetBestMatchingEvidenceOfItem(context.Background(), "service", 1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.GetBestMatchingEvidenceOfItem(context.Background(), "service", 0, domain.NewIDSet("a"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.GetBestMatchingEvidenceOfItem(context.Background(), "service", 1, domain.NewIDSet())
	assert.ErrorIs(t, err, domain.ErrNoMatchingItems)
}

func TestRetrievalService_RecordsMetrics(t *testing.T) {
	f := newRetrievalFixture(t)
	m := metrics.New(metrics.DefaultConfig())
	f.svc.SetMetrics(m)

	_, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	require.NoError(t, err)
	_, err = f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{
		Allowed: domain.NewIDSet("zzz"),
	})
	require.ErrorIs(t, err, domain.ErrNoMatchingItems)

	n, err := testutil.GatherAndCount(m.Registry(), "sercha_rec_retrieval_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per outcome")
}

func TestRetrievalService_Deterministic(t *testing.T) {
	f := newRetrievalFixture(t)

	first, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	require.NoError(t, err)
	second, err := f.svc.GetBestMatchingItems(context.Background(), "food", domain.RetrievalOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRetrievalService_GetItem(t *testing.T) {
	f := newRetrievalFixture(t)

	item, err := f.svc.GetItem("b")
	require.NoError(t, err)
	assert.Equal(t, "Pasta Place", item.Name)

	_, err = f.svc.GetItem("zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetrievalService_Defaults(t *testing.T) {
	f := newRetrievalFixture(t)
	assert.Equal(t, domain.DefaultRankOptions(), f.svc.Defaults())

	f.svc.SetDefaults(singleGroups(2))
	assert.Equal(t, singleGroups(2), f.svc.Defaults())
}
