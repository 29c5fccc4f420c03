package document

import (
	"encoding/json"
	"fmt"

	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

// Top-level keys of the persisted representation
const (
	keyTables        = "tables"
	keyForms         = "forms"
	keyRawText       = "raw_text"
	keyOCRInfo       = "ocr_info"
	keyPages         = "pages"
	keyExtractedText = "extracted_text"
	keyAnalysis      = "analysis"
	keyError         = "error"
	keyNote          = "note"
	keyBackend       = "backend"
)

type geometricJSON struct {
	Tables  []reconstruct.Grid      `json:"tables"`
	Forms   []reconstruct.FormField `json:"forms"`
	RawText string                  `json:"raw_text"`
}

type extractedTextJSON struct {
	RawText  string   `json:"raw_text"`
	Analysis Analysis `json:"analysis"`
}

type markdownJSON struct {
	OCRInfo       OCRInfo           `json:"ocr_info"`
	Pages         []MarkdownPage    `json:"pages"`
	ExtractedText extractedTextJSON `json:"extracted_text"`
}

type fallbackJSON struct {
	Backend string `json:"backend,omitempty"`
	Error   string `json:"error"`
	Note    string `json:"note"`
}

func (d *GeometricDocument) wire() geometricJSON {
	w := geometricJSON{Tables: d.Tables, Forms: d.Forms, RawText: d.RawText}
	if w.Tables == nil {
		w.Tables = []reconstruct.Grid{}
	}
	if w.Forms == nil {
		w.Forms = []reconstruct.FormField{}
	}
	return w
}

func (d *MarkdownDocument) wire() markdownJSON {
	w := markdownJSON{
		OCRInfo: d.OCRInfo,
		Pages:   d.Pages,
		ExtractedText: extractedTextJSON{
			RawText:  d.RawText,
			Analysis: d.Analysis,
		},
	}
	if w.Pages == nil {
		w.Pages = []MarkdownPage{}
	}
	return w
}

func (d *FallbackDocument) wire() fallbackJSON {
	return fallbackJSON{Backend: d.Backend, Error: d.Error, Note: d.Note}
}

func (d *GeometricDocument) MarshalJSON() ([]byte, error) { return json.Marshal(d.wire()) }
func (d *MarkdownDocument) MarshalJSON() ([]byte, error)  { return json.Marshal(d.wire()) }
func (d *FallbackDocument) MarshalJSON() ([]byte, error)  { return json.Marshal(d.wire()) }

func (d *GeometricDocument) ToMap() map[string]interface{} { return toMap(d.wire()) }
func (d *MarkdownDocument) ToMap() map[string]interface{}  { return toMap(d.wire()) }
func (d *FallbackDocument) ToMap() map[string]interface{}  { return toMap(d.wire()) }

// toMap round-trips v through JSON so the result only holds primitives
func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// Encode serializes a document for persistence
func Encode(doc StructuredDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("cannot encode nil document")
	}
	if g, ok := doc.(GenericDocument); ok {
		return json.Marshal(map[string]interface{}(g))
	}
	return json.Marshal(doc)
}

// Decode restores a persisted document. A "tables" key marks a geometric
// document, "pages" together with "extracted_text" a markdown document and
// "error" with "note" a fallback document. Anything else that is a JSON
// object becomes a GenericDocument.
func Decode(data []byte) (StructuredDocument, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	switch {
	case has(probe, keyTables):
		var w geometricJSON
		if err := json.Unmarshal(data, &w); err == nil {
			return &GeometricDocument{Tables: w.Tables, Forms: w.Forms, RawText: w.RawText}, nil
		}
	case has(probe, keyPages) && has(probe, keyExtractedText):
		var w markdownJSON
		if err := json.Unmarshal(data, &w); err == nil {
			return &MarkdownDocument{
				OCRInfo:  w.OCRInfo,
				Pages:    w.Pages,
				RawText:  w.ExtractedText.RawText,
				Analysis: w.ExtractedText.Analysis,
			}, nil
		}
	case has(probe, keyError) && has(probe, keyNote) && len(probe) <= 3:
		var w fallbackJSON
		if err := json.Unmarshal(data, &w); err == nil {
			return &FallbackDocument{Backend: w.Backend, Error: w.Error, Note: w.Note}, nil
		}
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return GenericDocument(generic), nil
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}
