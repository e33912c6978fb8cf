package domain

// EvidenceSnippet is a review attached to a recommended item.
type EvidenceSnippet struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// RecommendedItem is an item hydrated from the metadata store together with
// the query that produced it and its best-matching evidence.
type RecommendedItem struct {
	Item     Item              `json:"item"`
	Query    string            `json:"query"`
	Score    float64           `json:"score"`
	Evidence []EvidenceSnippet `json:"evidence"`
}

// Recommendation is the grouped, ranked result of one retrieval call.
// Items within a group are considered equally relevant.
type Recommendation struct {
	Query  string              `json:"query"`
	Groups [][]RecommendedItem `json:"groups"`
}

// Items flattens the groups in rank order.
func (r *Recommendation) Items() []RecommendedItem {
	var out []RecommendedItem
	for _, g := range r.Groups {
		out = append(out, g...)
	}
	return out
}

// Len returns the number of recommended items.
func (r *Recommendation) Len() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g)
	}
	return n
}

// RetrievalOptions configures one retrieval call.
type RetrievalOptions struct {
	// Rank holds the ranking parameters.
	Rank RankOptions

	// Allowed restricts candidates to these ids. Nil means every item.
	Allowed IDSet

	// State, when set, is run through the filter chain before ranking.
	State *ConversationState
}
