package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UsesOwnRegistry(t *testing.T) {
	a := New(DefaultConfig())
	b := New(DefaultConfig())

	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestNew_UsesSuppliedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Registry: reg})

	assert.Same(t, reg, m.Registry())
}

func TestRecordRetrieval(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordRetrieval("items", OutcomeOK, 20*time.Millisecond)
	m.RecordRetrieval("items", OutcomeOK, 30*time.Millisecond)
	m.RecordRetrieval("items", OutcomeNoMatch, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.retrievals.WithLabelValues("items", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievals.WithLabelValues("items", OutcomeNoMatch)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestRecordCandidatesAndCache(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordCandidates(12)
	m.RecordCache(CacheHit)
	m.RecordCache(CacheMiss)
	m.RecordCache(CacheHit)

	assert.Equal(t, 1, testutil.CollectAndCount(m.candidates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cache.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues(CacheMiss)))
}

func TestNilMetricsRecordsNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRetrieval("items", OutcomeOK, time.Second)
		m.RecordCandidates(1)
		m.RecordCache(CacheHit)
	})
}

func TestHandler(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordRetrieval("evidence", OutcomeError, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body),
		`sercha_rec_retrieval_requests_total{operation="evidence",outcome="error"} 1`))
}
