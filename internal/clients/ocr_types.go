/**
 * OCR Types - Shared data structures for markdown OCR backends
 *
 * The shape mirrors the Mistral OCR response; the Tesseract client
 * produces the same shape so both feed one normalizer.
 */

package clients

// OCRResponse is the complete result of one markdown OCR call
type OCRResponse struct {
	Model     string       `json:"model"`
	Pages     []OCRPage    `json:"pages"`
	UsageInfo OCRUsageInfo `json:"usage_info"`
}

// OCRPage is one page of markdown OCR output
type OCRPage struct {
	Index      int              `json:"index"`
	Markdown   string           `json:"markdown"`
	Images     []OCRImage       `json:"images"`
	Dimensions OCRPageDimension `json:"dimensions"`
}

// OCRImage is an embedded image region the backend found on a page
type OCRImage struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"top_left_x"`
	TopLeftY     int    `json:"top_left_y"`
	BottomRightX int    `json:"bottom_right_x"`
	BottomRightY int    `json:"bottom_right_y"`
}

// OCRPageDimension is the rendered page size
type OCRPageDimension struct {
	DPI    int `json:"dpi"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// OCRUsageInfo reports what the backend billed for
type OCRUsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes"`
}
