/**
 * Structured documents produced by the extraction backends
 *
 * Geometric backends yield tables, form fields and raw text. Markdown OCR
 * backends yield per-page markdown plus a keyword analysis. The two shapes
 * are kept apart; consumers switch on the concrete type.
 */

package document

import (
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

// Kind names a StructuredDocument variant
type Kind string

const (
	KindGeometric Kind = "geometric"
	KindMarkdown  Kind = "markdown"
	KindFallback  Kind = "fallback"
	KindGeneric   Kind = "generic"
)

// StructuredDocument is the normalized result of one extraction call.
// Implementations: *GeometricDocument, *MarkdownDocument, *FallbackDocument
// and GenericDocument.
type StructuredDocument interface {
	Kind() Kind
	// ToMap returns the document as nested maps, slices and primitives
	ToMap() map[string]interface{}
}

// GeometricDocument is produced from block-based OCR output
type GeometricDocument struct {
	Tables  []reconstruct.Grid
	Forms   []reconstruct.FormField
	RawText string
}

func (d *GeometricDocument) Kind() Kind { return KindGeometric }

// Dimensions is the page size reported by a markdown OCR backend
type Dimensions struct {
	DPI    int `json:"dpi"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// MarkdownPage is one page of markdown OCR output
type MarkdownPage struct {
	Index      int          `json:"index"`
	Dimensions Dimensions   `json:"dimensions"`
	Markdown   string       `json:"markdown"`
	Tables     [][][]string `json:"tables,omitempty"`
}

// UsageInfo is the backend's accounting for one call
type UsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes"`
}

// OCRInfo identifies the model that produced a markdown document
type OCRInfo struct {
	Model     string    `json:"model"`
	UsageInfo UsageInfo `json:"usage_info"`
}

// PartyInfo holds the line classified as describing a sender or recipient
type PartyInfo struct {
	Info string `json:"info,omitempty"`
}

// ShipmentInfo holds lines classified as shipment details
type ShipmentInfo struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	Date           string `json:"date,omitempty"`
	Weight         string `json:"weight,omitempty"`
}

// Analysis is the advisory keyword classification of markdown text
type Analysis struct {
	Sender    PartyInfo    `json:"sender"`
	Recipient PartyInfo    `json:"recipient"`
	Shipment  ShipmentInfo `json:"shipment"`
}

// MarkdownDocument is produced from markdown OCR output
type MarkdownDocument struct {
	OCRInfo  OCRInfo
	Pages    []MarkdownPage
	RawText  string
	Analysis Analysis
}

func (d *MarkdownDocument) Kind() Kind { return KindMarkdown }

// FallbackDocument records a failed backend call when the caller opted
// into storing failures instead of aborting
type FallbackDocument struct {
	Backend string
	Error   string
	Note    string
}

func (d *FallbackDocument) Kind() Kind { return KindFallback }

// GenericDocument is any stored document whose shape is not recognized
type GenericDocument map[string]interface{}

func (d GenericDocument) Kind() Kind { return KindGeneric }

func (d GenericDocument) ToMap() map[string]interface{} { return map[string]interface{}(d) }
