package processor

import (
	"strings"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

// NormalizeGeometric reconstructs tables, form fields and raw text from
// the blocks of a geometric OCR response. Tables without cells are
// skipped. LINE text is joined in scan order, one line per row.
func NormalizeGeometric(blocks []reconstruct.Block) *document.GeometricDocument {
	page := reconstruct.NewPage(blocks)
	words := reconstruct.NewWordIndex(page.Words())

	doc := &document.GeometricDocument{
		Tables: []reconstruct.Grid{},
	}

	var raw strings.Builder
	for _, b := range page.Blocks {
		switch b.Type {
		case reconstruct.BlockTable:
			grid, ok := reconstruct.BuildGrid(page, b.RelatedIDs(reconstruct.RelationshipChild), words)
			if ok {
				doc.Tables = append(doc.Tables, *grid)
			}
		case reconstruct.BlockLine:
			raw.WriteString(lineText(b, page, words))
			raw.WriteString("\n")
		}
	}

	doc.Forms = reconstruct.ExtractForms(page, words).Fields()
	doc.RawText = raw.String()
	return doc
}

// lineText prefers the line's own text, then its CHILD words, then the
// words under its box
func lineText(b reconstruct.Block, page *reconstruct.Page, words reconstruct.TextResolver) string {
	if b.HasText {
		return b.Text
	}

	var parts []string
	for _, id := range b.RelatedIDs(reconstruct.RelationshipChild) {
		if w, ok := page.Block(id); ok && w.Type == reconstruct.BlockWord {
			parts = append(parts, w.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return words.ResolveText(b.Box)
}
