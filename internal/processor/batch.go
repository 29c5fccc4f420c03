package processor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/waybill-worker/internal/clients"
	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/errors"
	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

// Upload is one image of a bulk upload
type Upload struct {
	Filename string
	Data     []byte
}

// BatchRequest is a bulk upload processed inline
type BatchRequest struct {
	ModelName string
	ModelID   *int64
	Uploads   []Upload
}

// BatchResult lists the waybills stored for a batch, in input order
type BatchResult struct {
	BatchID    string
	WaybillIDs []int64
	Documents  []document.StructuredDocument
}

// BatchProcessor extracts a batch of uploads and stores the results
type BatchProcessor struct {
	extractor   *Extractor
	store       WaybillStore
	concurrency int
	logger      *logging.Logger
}

// NewBatchProcessor creates a batch processor running at most concurrency
// backend calls at once
func NewBatchProcessor(extractor *Extractor, store WaybillStore, concurrency int) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchProcessor{
		extractor:   extractor,
		store:       store,
		concurrency: concurrency,
		logger:      logging.NewLogger("BatchProcessor"),
	}
}

// Process checks the model configuration before touching storage, runs
// the backend calls in parallel and then stores results in input order.
// The first failing item stops the batch: items before it stay stored, the
// failing item leaves no record behind, and the error is returned together
// with the partial result.
func (b *BatchProcessor) Process(ctx context.Context, req *BatchRequest) (*BatchResult, error) {
	if len(req.Uploads) == 0 {
		return nil, fmt.Errorf("no images provided")
	}
	if _, err := b.extractor.CheckModel(req.ModelName); err != nil {
		return nil, err
	}

	batchID := uuid.New().String()
	log := b.logger.With("batchId", batchID, "model", req.ModelName)
	log.Info("Processing batch", "images", len(req.Uploads))

	docs := make([]document.StructuredDocument, len(req.Uploads))
	errs := make([]error, len(req.Uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, up := range req.Uploads {
		i, up := i, up
		g.Go(func() error {
			jobID := fmt.Sprintf("%s/%d", batchID, i)
			docs[i], errs[i] = b.extractor.Extract(gctx, jobID, req.ModelName, up.Data)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{BatchID: batchID}
	for i, up := range req.Uploads {
		if errs[i] != nil {
			log.Error("Batch item failed", "index", i, "filename", up.Filename, "error", errs[i])
			return result, fmt.Errorf("error processing image %s: %w", up.Filename, errs[i])
		}

		id, err := b.persist(ctx, batchID, req, up, docs[i])
		if err != nil {
			log.Error("Batch item could not be stored", "index", i, "filename", up.Filename, "error", err)
			return result, fmt.Errorf("error storing image %s: %w", up.Filename, err)
		}

		result.WaybillIDs = append(result.WaybillIDs, id)
		result.Documents = append(result.Documents, docs[i])
	}

	log.Info("Batch complete", "stored", len(result.WaybillIDs))
	return result, nil
}

// persist creates the waybill and stores its document, deleting the
// waybill again when the document cannot be stored
func (b *BatchProcessor) persist(ctx context.Context, batchID string, req *BatchRequest, up Upload, doc document.StructuredDocument) (int64, error) {
	waybill, err := b.store.CreateWaybillImage(ctx, &storage.NewWaybillImage{
		Filename:          up.Filename,
		MimeType:          clients.DetectImageMIME(up.Data),
		Image:             up.Data,
		ExtractionModelID: req.ModelID,
	})
	if err != nil {
		return 0, err
	}

	if err := b.store.CompleteExtraction(ctx, waybill.ID, doc); err != nil {
		if delErr := b.store.DeleteWaybillImage(ctx, waybill.ID); delErr != nil {
			b.logger.Error("Rollback failed", "batchId", batchID, "waybillId", waybill.ID, "error", delErr)
		}
		if _, ok := errors.AsProcessingError(err); ok {
			return 0, err
		}
		return 0, errors.NewPersistenceFailedError(batchID, "complete extraction", err)
	}

	return waybill.ID, nil
}
