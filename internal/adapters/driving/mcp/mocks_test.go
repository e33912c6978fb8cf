package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driving"
)

// Ensure mock implements the interface.
var _ driving.RetrievalService = (*mockRetrievalService)(nil)

// mockRetrievalService records calls and returns canned results.
type mockRetrievalService struct {
	recommendation *domain.Recommendation
	err            error
	items          map[string]*domain.Item

	lastQuery   string
	lastOptions domain.RetrievalOptions
	lastN       int
	lastAllowed domain.IDSet
}

func (m *mockRetrievalService) GetBestMatchingItems(
	_ context.Context, query string, opts domain.RetrievalOptions,
) (*domain.Recommendation, error) {
	m.lastQuery = query
	m.lastOptions = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.recommendation, nil
}

func (m *mockRetrievalService) GetBestMatchingEvidenceOfItem(
	_ context.Context, query string, n int, allowed domain.IDSet,
) (*domain.Recommendation, error) {
	m.lastQuery = query
	m.lastN = n
	m.lastAllowed = allowed
	if m.err != nil {
		return nil, m.err
	}
	return m.recommendation, nil
}

func (m *mockRetrievalService) GetItem(id string) (*domain.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func testRecommendation() *domain.Recommendation {
	return &domain.Recommendation{
		Query: "ramen",
		Groups: [][]domain.RecommendedItem{
			{
				{
					Item:  domain.Item{ID: "r1", Name: "Noodle Bar", Attributes: map[string]any{"cuisine": "japanese"}},
					Query: "ramen",
					Score: 0.91,
					Evidence: []domain.EvidenceSnippet{
						{Index: 0, Text: "Best ramen in town", Score: 0.93},
						{Index: 1, Text: "Rich broth", Score: 0.89},
					},
				},
				{
					Item:  domain.Item{ID: "r2", Name: "Udon House"},
					Query: "ramen",
					Score: 0.89,
				},
			},
			{
				{
					Item:  domain.Item{ID: "r3", Name: "Taco Stand"},
					Query: "ramen",
					Score: 0.40,
				},
			},
		},
	}
}

func newTestServer(svc *mockRetrievalService) *Server {
	s, err := NewServer(&Ports{Retrieval: svc})
	if err != nil {
		panic(err)
	}
	return s
}
