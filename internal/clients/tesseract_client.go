/**
 * Tesseract Client - Local OCR for offline processing
 *
 * Simple, free, offline OCR using Tesseract. Output is shaped like a
 * single-page markdown OCR response so it shares the markdown normalizer.
 */

package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/waybill-worker/internal/logging"
)

// TesseractModel is reported as the model of Tesseract responses
const TesseractModel = "tesseract-local"

// TesseractClient runs OCR with the local Tesseract engine
type TesseractClient struct {
	languages []string
	logger    *logging.Logger
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Languages []string
}

// NewTesseractClient creates a new Tesseract OCR client
func NewTesseractClient(cfg *TesseractConfig) *TesseractClient {
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}

	return &TesseractClient{
		languages: languages,
		logger:    logging.NewLogger("TesseractClient"),
	}
}

// Name identifies the backend in logs and errors
func (t *TesseractClient) Name() string {
	return "tesseract"
}

// ProcessImage performs OCR using Tesseract
func (t *TesseractClient) ProcessImage(ctx context.Context, imageData []byte) (*OCRResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}

	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	t.logger.Info("OCR complete",
		"languages", t.languages,
		"textLength", len(text),
		"duration", time.Since(startTime))

	return &OCRResponse{
		Model: TesseractModel,
		Pages: []OCRPage{
			{
				Index:    0,
				Markdown: text,
				Images:   []OCRImage{},
			},
		},
		UsageInfo: OCRUsageInfo{
			PagesProcessed: 1,
			DocSizeBytes:   len(imageData),
		},
	}, nil
}
