package domain

import (
	"fmt"
	"sync"
)

// Evidence is a single review snippet supporting an item.
type Evidence struct {
	// Index is the position of the snippet in the corpus and the vector index.
	Index int

	// ItemID is the item the snippet supports.
	ItemID string

	// Text is the snippet content.
	Text string
}

// EvidenceCorpus stores evidence as parallel slices.
// Position i in the corpus is position i in the vector index.
type EvidenceCorpus struct {
	itemIDs []string
	texts   []string

	once     sync.Once
	grouping *EvidenceGrouping
}

// NewEvidenceCorpus creates a corpus from index-aligned item ids and texts.
func NewEvidenceCorpus(itemIDs, texts []string) (*EvidenceCorpus, error) {
	if len(itemIDs) != len(texts) {
		return nil, fmt.Errorf("%w: %d item ids for %d evidence texts", ErrInvalidInput, len(itemIDs), len(texts))
	}
	return &EvidenceCorpus{itemIDs: itemIDs, texts: texts}, nil
}

// Len returns the number of evidence units.
func (c *EvidenceCorpus) Len() int {
	return len(c.texts)
}

// At returns the evidence unit at position i.
func (c *EvidenceCorpus) At(i int) (Evidence, error) {
	if i < 0 || i >= len(c.texts) {
		return Evidence{}, fmt.Errorf("%w: evidence index %d out of range [0, %d)", ErrInvalidInput, i, len(c.texts))
	}
	return Evidence{Index: i, ItemID: c.itemIDs[i], Text: c.texts[i]}, nil
}

// ItemIDs returns the item id of every evidence unit, in corpus order.
// The returned slice must not be modified.
func (c *EvidenceCorpus) ItemIDs() []string {
	return c.itemIDs
}

// Texts returns every evidence text, in corpus order.
// The returned slice must not be modified.
func (c *EvidenceCorpus) Texts() []string {
	return c.texts
}

// Grouping returns the evidence-to-item grouping, computed once.
func (c *EvidenceCorpus) Grouping() *EvidenceGrouping {
	c.once.Do(func() {
		c.grouping = GroupEvidence(c.itemIDs)
	})
	return c.grouping
}

// EvidenceGroup is the evidence belonging to one item.
// When the item's evidence is contiguous it is the window [Start, End)
// and Members is nil; otherwise Members lists the positions in corpus order.
type EvidenceGroup struct {
	ItemID  string
	Start   int
	End     int
	Members []int
}

// Len returns the number of evidence units in the group.
func (g EvidenceGroup) Len() int {
	if g.Members != nil {
		return len(g.Members)
	}
	return g.End - g.Start
}

// Indices returns the corpus positions of the group, in corpus order.
func (g EvidenceGroup) Indices() []int {
	if g.Members != nil {
		return g.Members
	}
	out := make([]int, 0, g.End-g.Start)
	for i := g.Start; i < g.End; i++ {
		out = append(out, i)
	}
	return out
}

// Contiguous reports whether the group is a single window.
func (g EvidenceGroup) Contiguous() bool {
	return g.Members == nil
}

// EvidenceGrouping maps items to their evidence.
// Groups are ordered by the first appearance of each item id in the corpus.
type EvidenceGrouping struct {
	groups []EvidenceGroup
	byID   map[string]int
}

// GroupEvidence groups evidence positions by item id.
// Items whose evidence forms one contiguous run become windows;
// scattered items fall back to grouping by id equality.
func GroupEvidence(itemIDs []string) *EvidenceGrouping {
	g := &EvidenceGrouping{byID: make(map[string]int)}

	members := make([][]int, 0)
	for i, id := range itemIDs {
		pos, ok := g.byID[id]
		if !ok {
			pos = len(g.groups)
			g.byID[id] = pos
			g.groups = append(g.groups, EvidenceGroup{ItemID: id})
			members = append(members, nil)
		}
		members[pos] = append(members[pos], i)
	}

	for pos, m := range members {
		first, last := m[0], m[len(m)-1]
		if last-first+1 == len(m) {
			g.groups[pos].Start = first
			g.groups[pos].End = last + 1
			continue
		}
		g.groups[pos].Members = m
	}

	return g
}

// Len returns the number of items with evidence.
func (g *EvidenceGrouping) Len() int {
	return len(g.groups)
}

// Group returns the i-th group.
func (g *EvidenceGrouping) Group(i int) EvidenceGroup {
	return g.groups[i]
}

// IndexOf returns the group position of itemID.
func (g *EvidenceGrouping) IndexOf(itemID string) (int, bool) {
	pos, ok := g.byID[itemID]
	return pos, ok
}

// Contiguous reports whether every item's evidence is a single window.
func (g *EvidenceGrouping) Contiguous() bool {
	for _, grp := range g.groups {
		if !grp.Contiguous() {
			return false
		}
	}
	return true
}
