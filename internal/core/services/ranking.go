package services

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// RankingEngine turns per-evidence similarity scores into tie-grouped item rankings.
//
// Item scores use bounded late fusion: the mean of an item's top-k evidence
// scores, which rewards consistently relevant items over single outliers.
// Scores are raw inner products and are not comparable across queries.
//
// The engine holds only the immutable evidence grouping and is safe for
// concurrent use.
type RankingEngine struct {
	grouping *domain.EvidenceGrouping
	size     int
}

// NewRankingEngine creates a ranking engine over the corpus's evidence grouping.
func NewRankingEngine(corpus *domain.EvidenceCorpus) *RankingEngine {
	return &RankingEngine{
		grouping: corpus.Grouping(),
		size:     corpus.Len(),
	}
}

// Items returns the number of items with evidence.
func (e *RankingEngine) Items() int {
	return e.grouping.Len()
}

// ScoreItems computes one late-fusion score per item, in grouping order.
//
// For each item it averages the topKEvidence highest evidence scores (all of
// them when the item has fewer) and records the selected evidence positions,
// most similar first. Every index row has exactly topKEvidence entries;
// unused slots hold domain.NoEvidence.
func (e *RankingEngine) ScoreItems(scores []float32, topKEvidence int) ([]float64, [][]int, error) {
	if len(scores) != e.size {
		return nil, nil, fmt.Errorf("%w: %d scores for %d evidence units", domain.ErrInvalidInput, len(scores), e.size)
	}
	if topKEvidence <= 0 {
		return nil, nil, fmt.Errorf("%w: topk_evidence must be positive, got %d", domain.ErrInvalidInput, topKEvidence)
	}

	itemScores := make([]float64, e.grouping.Len())
	rows := make([][]int, e.grouping.Len())

	for g := 0; g < e.grouping.Len(); g++ {
		order := append([]int(nil), e.grouping.Group(g).Indices()...)

		// Indices arrive in corpus order, so equal scores keep the lower position first.
		sort.SliceStable(order, func(i, j int) bool {
			return scores[order[i]] > scores[order[j]]
		})

		k := min(topKEvidence, len(order))
		row := make([]int, topKEvidence)
		for i := range row {
			row[i] = domain.NoEvidence
		}

		var sum float64
		for i := 0; i < k; i++ {
			row[i] = order[i]
			sum += float64(scores[order[i]])
		}
		if k > 0 {
			itemScores[g] = sum / float64(k)
		}
		rows[g] = row
	}

	return itemScores, rows, nil
}

// Mask zeroes the score of every item not in allowed and reports which items
// remain eligible. A nil allowed set leaves every item eligible.
//
// Zero is the ineligible sentinel: an eligible item whose real score is
// exactly zero is indistinguishable from a masked one.
func (e *RankingEngine) Mask(itemScores []float64, allowed domain.IDSet) []bool {
	eligible := make([]bool, len(itemScores))
	for g := range itemScores {
		if allowed.Allows(e.grouping.Group(g).ItemID) {
			eligible[g] = itemScores[g] != 0
			continue
		}
		itemScores[g] = 0
	}
	return eligible
}

// Rank scores, masks, sorts and tie-groups items.
//
// Items are walked in descending score order. An item joins the current
// group while its gap to the group's anchor is within opts.TieTolerance and
// the group holds fewer than opts.MaxItemsPerTieGroup items; otherwise it
// anchors a new group. No group is started after opts.TopKItems.
//
// Returns domain.ErrNoMatchingItems when no eligible item has a nonzero score.
func (e *RankingEngine) Rank(scores []float32, allowed domain.IDSet, opts domain.RankOptions) (*domain.Ranking, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	itemScores, rows, err := e.ScoreItems(scores, opts.TopKEvidence)
	if err != nil {
		return nil, err
	}
	eligible := e.Mask(itemScores, allowed)

	candidates := make([]int, 0, len(itemScores))
	for g, ok := range eligible {
		if ok {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		logger.Debug("Ranking: no eligible item scored above zero (%d items, allowed=%d)",
			len(itemScores), allowedLen(allowed))
		return nil, domain.ErrNoMatchingItems
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return itemScores[candidates[i]] > itemScores[candidates[j]]
	})

	ranking := &domain.Ranking{}
	var anchor float64
	for _, g := range candidates {
		score := itemScores[g]
		item := e.rankedItem(g, score, rows[g], scores)

		if n := len(ranking.Groups); n > 0 {
			current := &ranking.Groups[n-1]
			if anchor-score <= opts.TieTolerance && len(current.Items) < opts.MaxItemsPerTieGroup {
				current.Items = append(current.Items, item)
				continue
			}
			if n == opts.TopKItems {
				break
			}
		}

		anchor = score
		ranking.Groups = append(ranking.Groups, domain.RankedGroup{
			AnchorScore: score,
			Items:       []domain.RankedItem{item},
		})
	}

	logger.Debug("Ranking: %d candidates -> %d groups, %d items",
		len(candidates), len(ranking.Groups), ranking.Len())

	return ranking, nil
}

// rankedItem strips sentinel padding from an index row.
func (e *RankingEngine) rankedItem(g int, score float64, row []int, scores []float32) domain.RankedItem {
	item := domain.RankedItem{
		ItemID: e.grouping.Group(g).ItemID,
		Score:  score,
	}
	for _, idx := range row {
		if idx == domain.NoEvidence {
			break
		}
		item.EvidenceIndices = append(item.EvidenceIndices, idx)
		item.EvidenceScores = append(item.EvidenceScores, float64(scores[idx]))
	}
	return item
}

func allowedLen(allowed domain.IDSet) int {
	if allowed == nil {
		return -1
	}
	return allowed.Len()
}
