package processor

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/adverant/nexus/waybill-worker/internal/clients"
	"github.com/adverant/nexus/waybill-worker/internal/document"
)

// lineRule assigns a classified line to one analysis field
type lineRule struct {
	keywords []string
	assign   func(a *document.Analysis, line string)
}

// lineRules are tested in order; the first rule with a matching keyword wins
var lineRules = []lineRule{
	{keywords: []string{"sender", "from"}, assign: func(a *document.Analysis, l string) { a.Sender.Info = l }},
	{keywords: []string{"recipient", "to"}, assign: func(a *document.Analysis, l string) { a.Recipient.Info = l }},
	{keywords: []string{"tracking", "waybill"}, assign: func(a *document.Analysis, l string) { a.Shipment.TrackingNumber = l }},
	{keywords: []string{"date"}, assign: func(a *document.Analysis, l string) { a.Shipment.Date = l }},
	{keywords: []string{"weight"}, assign: func(a *document.Analysis, l string) { a.Shipment.Weight = l }},
}

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.Table))

// NormalizeMarkdown converts a markdown OCR response into a MarkdownDocument.
// Page markdown is joined in page order into the raw text, every line of
// which is run through the keyword classifier. The analysis is advisory.
func NormalizeMarkdown(resp *clients.OCRResponse) *document.MarkdownDocument {
	doc := &document.MarkdownDocument{
		OCRInfo: document.OCRInfo{
			Model: resp.Model,
			UsageInfo: document.UsageInfo{
				PagesProcessed: resp.UsageInfo.PagesProcessed,
				DocSizeBytes:   resp.UsageInfo.DocSizeBytes,
			},
		},
		Pages: make([]document.MarkdownPage, 0, len(resp.Pages)),
	}

	var raw strings.Builder
	for _, page := range resp.Pages {
		doc.Pages = append(doc.Pages, document.MarkdownPage{
			Index: page.Index,
			Dimensions: document.Dimensions{
				DPI:    page.Dimensions.DPI,
				Height: page.Dimensions.Height,
				Width:  page.Dimensions.Width,
			},
			Markdown: page.Markdown,
			Tables:   ExtractMarkdownTables(page.Markdown),
		})
		raw.WriteString(page.Markdown)
		raw.WriteString("\n")
	}

	doc.RawText = raw.String()
	doc.Analysis = ClassifyLines(doc.RawText)
	return doc
}

// ClassifyLines runs the keyword classifier over every non-empty trimmed
// line. Matching is case-insensitive substring matching; a later line
// overwrites an earlier one for the same field.
func ClassifyLines(rawText string) document.Analysis {
	var analysis document.Analysis

	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		for _, rule := range lineRules {
			if containsAny(lower, rule.keywords) {
				rule.assign(&analysis, line)
				break
			}
		}
	}

	return analysis
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ExtractMarkdownTables returns the cell text of every GFM pipe table in
// source, header row first
func ExtractMarkdownTables(source string) [][][]string {
	src := []byte(source)
	root := markdownParser.Parser().Parse(text.NewReader(src))

	var tables [][][]string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		tbl, ok := n.(*extast.Table)
		if !ok {
			return ast.WalkContinue, nil
		}

		var rows [][]string
		for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, strings.TrimSpace(inlineText(cell, src)))
			}
			rows = append(rows, cells)
		}
		tables = append(tables, rows)
		return ast.WalkSkipChildren, nil
	})

	return tables
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
