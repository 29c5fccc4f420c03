package reconstruct

import "strings"

const (
	// OverlapMargin is added to every side of a target box before matching words
	OverlapMargin = 0.005

	// MinWordOverlapRatio is the share of a word's own area that must fall
	// inside the target box for the word to be attributed to it
	MinWordOverlapRatio = 0.3
)

// ResolveText returns the space-joined text of every word that substantially
// overlaps target, in the order the words were detected. It never fails; an
// empty string means no word qualified.
func ResolveText(target BoundingBox, words []Word) string {
	expanded := target.Expand(OverlapMargin)

	var parts []string
	for _, w := range words {
		if wordOverlaps(expanded, w.Box) {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " ")
}

// wordOverlaps applies the candidate predicate and the area threshold
// against an already expanded target box.
func wordOverlaps(target, word BoundingBox) bool {
	horizontal := word.Right() > target.Left && word.Left < target.Right()
	vertical := word.Bottom() > target.Top && word.Top < target.Bottom()
	if !horizontal || !vertical {
		return false
	}

	overlapWidth := min(word.Right(), target.Right()) - max(word.Left, target.Left)
	overlapHeight := min(word.Bottom(), target.Bottom()) - max(word.Top, target.Top)
	overlapArea := max(0, overlapWidth) * max(0, overlapHeight)

	return overlapArea > MinWordOverlapRatio*word.Area()
}
