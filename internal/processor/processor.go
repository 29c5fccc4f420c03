/**
 * Waybill Processor for the Waybill Worker
 *
 * Orchestrates extraction of one stored waybill:
 * - load the uploaded image and its extraction model
 * - run the model's OCR backend and reconstruct structure
 * - store the structured document and flag the waybill processed
 */

package processor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

// WaybillStore is the persistence the processors need
type WaybillStore interface {
	CreateWaybillImage(ctx context.Context, in *storage.NewWaybillImage) (*storage.WaybillImage, error)
	GetWaybillImage(ctx context.Context, id int64) (*storage.WaybillImage, error)
	CompleteExtraction(ctx context.Context, waybillID int64, doc document.StructuredDocument) error
	DeleteWaybillImage(ctx context.Context, id int64) error
}

// WaybillProcessorInterface defines the interface for queued waybill processing
type WaybillProcessorInterface interface {
	ProcessWaybill(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
}

// ProcessRequest identifies a stored waybill to extract
type ProcessRequest struct {
	JobID     string
	WaybillID int64
	// ModelName overrides the waybill's stored extraction model
	ModelName string
}

// ProcessResult summarizes one extraction
type ProcessResult struct {
	WaybillID        int64         `json:"waybillId"`
	Kind             document.Kind `json:"kind"`
	TablesExtracted  int           `json:"tablesExtracted"`
	FormsExtracted   int           `json:"formsExtracted"`
	ProcessingTimeMs int64         `json:"processingTime"`
}

// WaybillProcessor extracts stored waybills
type WaybillProcessor struct {
	extractor *Extractor
	store     WaybillStore
}

// NewWaybillProcessor creates a new waybill processor
func NewWaybillProcessor(extractor *Extractor, store WaybillStore) (*WaybillProcessor, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &WaybillProcessor{extractor: extractor, store: store}, nil
}

// ProcessWaybill extracts one stored waybill. On failure the waybill stays
// unprocessed so the job can be retried.
func (p *WaybillProcessor) ProcessWaybill(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log.Printf("[Job %s] Starting waybill extraction (waybill=%d)", req.JobID, req.WaybillID)

	// Step 1: Load the stored image
	waybill, err := p.store.GetWaybillImage(ctx, req.WaybillID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waybill: %w", err)
	}
	log.Printf("[Job %s] Step 1: Loaded %s (%d bytes, model=%q)",
		req.JobID, waybill.Filename, len(waybill.Image), waybill.ExtractionModelName)

	modelName := req.ModelName
	if modelName == "" {
		modelName = waybill.ExtractionModelName
	}

	// Step 2: OCR and reconstruction
	log.Printf("[Job %s] Step 2: Extracting with model %q", req.JobID, modelName)
	doc, err := p.extractor.Extract(ctx, req.JobID, modelName, waybill.Image)
	if err != nil {
		return nil, err
	}

	// Step 3: Persist
	log.Printf("[Job %s] Step 3: Storing %s document", req.JobID, doc.Kind())
	if err := p.store.CompleteExtraction(ctx, waybill.ID, doc); err != nil {
		return nil, err
	}

	result := summarize(waybill.ID, doc)
	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	log.Printf("[Job %s] Waybill extraction complete: kind=%s, tables=%d, forms=%d, duration=%dms",
		req.JobID, result.Kind, result.TablesExtracted, result.FormsExtracted, result.ProcessingTimeMs)

	return result, nil
}

func summarize(waybillID int64, doc document.StructuredDocument) *ProcessResult {
	result := &ProcessResult{WaybillID: waybillID, Kind: doc.Kind()}
	if geo, ok := doc.(*document.GeometricDocument); ok {
		result.TablesExtracted = len(geo.Tables)
		result.FormsExtracted = len(geo.Forms)
	}
	return result
}
