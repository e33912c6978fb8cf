package domain

import "fmt"

// NoEvidence pads fixed-width evidence index rows for items with fewer
// evidence units than the requested width.
const NoEvidence = -1

// RankOptions controls late-fusion scoring and tie grouping.
type RankOptions struct {
	// TopKItems is the number of tie groups to surface.
	TopKItems int `json:"topk_items"`

	// TopKEvidence is the number of evidence scores averaged per item.
	TopKEvidence int `json:"topk_evidence"`

	// TieTolerance is the largest anchor-score gap still treated as a tie.
	TieTolerance float64 `json:"tie_tolerance"`

	// MaxItemsPerTieGroup caps the size of one tie group.
	MaxItemsPerTieGroup int `json:"max_items_per_tie_group"`
}

// DefaultRankOptions returns the ranking defaults.
func DefaultRankOptions() RankOptions {
	return RankOptions{
		TopKItems:           3,
		TopKEvidence:        3,
		TieTolerance:        0.05,
		MaxItemsPerTieGroup: 3,
	}
}

// Validate checks the options are usable.
func (o RankOptions) Validate() error {
	switch {
	case o.TopKItems <= 0:
		return fmt.Errorf("%w: topk_items must be positive, got %d", ErrInvalidInput, o.TopKItems)
	case o.TopKEvidence <= 0:
		return fmt.Errorf("%w: topk_evidence must be positive, got %d", ErrInvalidInput, o.TopKEvidence)
	case o.TieTolerance < 0:
		return fmt.Errorf("%w: tie_tolerance must not be negative, got %g", ErrInvalidInput, o.TieTolerance)
	case o.MaxItemsPerTieGroup <= 0:
		return fmt.Errorf("%w: max_items_per_tie_group must be positive, got %d",
			ErrInvalidInput, o.MaxItemsPerTieGroup)
	}
	return nil
}

// RankedItem is one surfaced item and the evidence that produced its score.
type RankedItem struct {
	// ItemID is the surfaced item.
	ItemID string

	// Score is the mean of the item's top evidence scores.
	Score float64

	// EvidenceIndices lists the selected corpus positions, most similar first.
	// Sentinel padding is removed.
	EvidenceIndices []int

	// EvidenceScores is index-aligned with EvidenceIndices.
	EvidenceScores []float64
}

// RankedGroup is a set of items whose scores are within the tie tolerance
// of the group's anchor (its first, highest-scoring item).
type RankedGroup struct {
	AnchorScore float64
	Items       []RankedItem
}

// Ranking is an ordered sequence of tie groups, best first.
type Ranking struct {
	Groups []RankedGroup
}

// ItemIDs returns every surfaced item id in rank order.
func (r *Ranking) ItemIDs() []string {
	var ids []string
	for _, g := range r.Groups {
		for _, it := range g.Items {
			ids = append(ids, it.ItemID)
		}
	}
	return ids
}

// Len returns the number of surfaced items across all groups.
func (r *Ranking) Len() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Items)
	}
	return n
}
