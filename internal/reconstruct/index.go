package reconstruct

import (
	"sort"
	"strings"

	"github.com/tidwall/rtree"
)

// WordIndex answers ResolveText queries for many targets over one word pool.
// Results are identical to ResolveText: the tree only narrows the candidates,
// which are then put back in detection order and filtered by the same rule.
type WordIndex struct {
	words []Word
	tree  rtree.RTreeG[int]
}

// NewWordIndex builds a spatial index over words
func NewWordIndex(words []Word) *WordIndex {
	idx := &WordIndex{words: words}
	for i, w := range words {
		idx.tree.Insert(
			[2]float64{w.Box.Left, w.Box.Top},
			[2]float64{w.Box.Right(), w.Box.Bottom()},
			i,
		)
	}
	return idx
}

// Len returns the number of indexed words
func (idx *WordIndex) Len() int {
	return len(idx.words)
}

// ResolveText is the indexed equivalent of the package-level ResolveText
func (idx *WordIndex) ResolveText(target BoundingBox) string {
	if idx == nil || len(idx.words) == 0 {
		return ""
	}

	expanded := target.Expand(OverlapMargin)

	var hits []int
	idx.tree.Search(
		[2]float64{expanded.Left, expanded.Top},
		[2]float64{expanded.Right(), expanded.Bottom()},
		func(_, _ [2]float64, i int) bool {
			hits = append(hits, i)
			return true
		},
	)
	sort.Ints(hits)

	var parts []string
	for _, i := range hits {
		if wordOverlaps(expanded, idx.words[i].Box) {
			parts = append(parts, idx.words[i].Text)
		}
	}
	return strings.Join(parts, " ")
}
