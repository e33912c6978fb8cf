package qdrant

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/vectorindex/dense"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// fakeClient is an in-memory Qdrant with dot-product scoring.
type fakeClient struct {
	collections map[string]map[uint64][]float32
	payloads    map[uint64]string
	distance    qdrant.Distance
	queries     []*qdrant.QueryPoints
	upserts     int
	queryErr    error
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: make(map[string]map[uint64][]float32),
		payloads:    make(map[uint64]string),
	}
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.collections[req.GetCollectionName()] = make(map[uint64][]float32)
	f.distance = req.GetVectorsConfig().GetParams().GetDistance()
	return nil
}

func (f *fakeClient) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts++
	points := f.collections[req.GetCollectionName()]
	for _, p := range req.GetPoints() {
		id := p.GetId().GetNum()
		points[id] = p.GetVectors().GetVector().GetDense().GetData()
		if v, ok := p.GetPayload()[payloadItemID]; ok {
			f.payloads[id] = v.GetStringValue()
		}
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Count(_ context.Context, req *qdrant.CountPoints) (uint64, error) {
	return uint64(len(f.collections[req.GetCollectionName()])), nil
}

func (f *fakeClient) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	query := req.GetQuery().GetNearest().GetDense().GetData()
	var hits []*qdrant.ScoredPoint
	for id, vec := range f.collections[req.GetCollectionName()] {
		var sum float32
		for i := range vec {
			sum += vec[i] * query[i]
		}
		hits = append(hits, &qdrant.ScoredPoint{Id: qdrant.NewIDNum(id), Score: sum})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit := int(req.GetLimit()); limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		for j := range out[i] {
			out[i][j] = rng.Float32()*2 - 1
		}
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "c", 3)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)

	_, err = New(newFakeClient(), "c", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	idx, err := New(newFakeClient(), "", 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultCollection, idx.collection)
}

func TestUpsert_BuildsDotCollection(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 2)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(context.Background(),
		[][]float32{{1, 0}, {0, 1}, {1, 1}}, []string{"a", "a", "b"}))

	assert.Equal(t, qdrant.Distance_Dot, client.distance)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, map[uint64]string{0: "a", 1: "a", 2: "b"}, client.payloads)
}

func TestUpsert_ReplacesCollection(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 1)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(context.Background(), [][]float32{{1}, {2}, {3}}, nil))
	require.NoError(t, idx.Upsert(context.Background(), [][]float32{{4}}, nil))

	assert.Len(t, client.collections["evidence"], 1)
	assert.Equal(t, 1, idx.Len())
}

func TestUpsert_Batches(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 2)
	require.NoError(t, err)

	vectors := randomVectors(rand.New(rand.NewSource(1)), upsertBatchSize*2+1, 2)
	require.NoError(t, idx.Upsert(context.Background(), vectors, nil))

	assert.Equal(t, 3, client.upserts)
	assert.Len(t, client.collections["evidence"], len(vectors))
}

func TestUpsert_Validation(t *testing.T) {
	idx, err := New(newFakeClient(), "evidence", 2)
	require.NoError(t, err)

	err = idx.Upsert(context.Background(), [][]float32{{1, 2, 3}}, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = idx.Upsert(context.Background(), [][]float32{{1, 2}}, []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScoreAll_ExactQueryOverAllPoints(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 2)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), [][]float32{{1, 0}, {0, 1}, {-1, 0}}, nil))

	scores, err := idx.ScoreAll(context.Background(), []float32{3, 1})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float32{3, 1, -3}, scores, 1e-6)
	require.Len(t, client.queries, 1)
	assert.Equal(t, uint64(3), client.queries[0].GetLimit())
	assert.True(t, client.queries[0].GetParams().GetExact())
}

func TestScoreAll_MissingHitsAreZero(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 1)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), [][]float32{{1}, {2}, {3}}, nil))

	// Drop a point behind the index's back.
	delete(client.collections["evidence"], 1)

	scores, err := idx.ScoreAll(context.Background(), []float32{1})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 3}, scores)
}

func TestScoreAll_MatchesDenseIndex(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, dim = 200, 16
	vectors := randomVectors(rng, n, dim)

	denseIdx, err := dense.FromVectors(dim, vectors)
	require.NoError(t, err)

	qIdx, err := New(newFakeClient(), "evidence", dim)
	require.NoError(t, err)
	require.NoError(t, qIdx.Upsert(context.Background(), vectors, nil))

	for q := 0; q < 5; q++ {
		query := randomVectors(rng, 1, dim)[0]

		want, err := denseIdx.ScoreAll(context.Background(), query)
		require.NoError(t, err)
		got, err := qIdx.ScoreAll(context.Background(), query)
		require.NoError(t, err)

		require.Len(t, got, n)
		assert.InDeltaSlice(t, want, got, 1e-4)
	}
}

func TestScoreAll_DimensionMismatch(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 3)
	require.NoError(t, err)

	_, err = idx.ScoreAll(context.Background(), []float32{1})

	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Empty(t, client.queries, "no request is sent")
}

func TestScoreAll_EmptyCollection(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 2)
	require.NoError(t, err)

	scores, err := idx.ScoreAll(context.Background(), []float32{1, 1})
	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.Empty(t, client.queries)
}

func TestScoreAll_QueryError(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 1)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), [][]float32{{1}}, nil))
	client.queryErr = errors.New("unavailable")

	_, err = idx.ScoreAll(context.Background(), []float32{1})
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestSync(t *testing.T) {
	client := newFakeClient()
	seed, err := New(client, "evidence", 1)
	require.NoError(t, err)
	require.NoError(t, seed.Upsert(context.Background(), [][]float32{{1}, {2}}, nil))

	idx, err := New(client, "evidence", 1)
	require.NoError(t, err)
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, 2, idx.Len())

	missing, err := New(client, "other", 1)
	require.NoError(t, err)
	require.NoError(t, missing.Sync(context.Background()))
	assert.Equal(t, 0, missing.Len())
}

func TestClose(t *testing.T) {
	client := newFakeClient()
	idx, err := New(client, "evidence", 1)
	require.NoError(t, err)

	require.NoError(t, idx.Close())
	assert.True(t, client.closed)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), Config{Dimensions: 4})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
