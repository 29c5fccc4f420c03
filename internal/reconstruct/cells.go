package reconstruct

import "strings"

// TextResolver resolves the text under a box. *WordIndex implements it and
// Words adapts a plain slice.
type TextResolver interface {
	ResolveText(target BoundingBox) string
}

// Words adapts a slice of words to TextResolver using a linear scan
type Words []Word

// ResolveText implements TextResolver
func (w Words) ResolveText(target BoundingBox) string {
	return ResolveText(target, w)
}

// CellText returns the cell's pre-resolved text when present, otherwise the
// text of the words overlapping the cell.
func CellText(cell Cell, words TextResolver) string {
	if cell.HasText {
		return cell.Text
	}
	if words == nil {
		return ""
	}
	return words.ResolveText(cell.Box)
}

// EscapeCellText prepares text for a spreadsheet cell so that it is never
// interpreted as a formula or number: quotes are doubled and a leading
// apostrophe is added. Empty text stays empty.
func EscapeCellText(s string) string {
	if s == "" {
		return ""
	}
	return "'" + strings.ReplaceAll(s, `"`, `""`)
}
