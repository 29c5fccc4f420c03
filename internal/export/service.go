package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

// Source loads waybills and their documents
type Source interface {
	ListWaybills(ctx context.Context, ids []int64) ([]*storage.WaybillImage, error)
	GetExtractedData(ctx context.Context, waybillID int64) (document.StructuredDocument, error)
}

// Service exports stored waybills as a workbook
type Service struct {
	source Source
	now    func() time.Time
	logger *logging.Logger
}

// NewService creates an export service
func NewService(source Source) *Service {
	return &Service{
		source: source,
		now:    time.Now,
		logger: logging.NewLogger("Exporter"),
	}
}

// Entries resolves rawIDs (see ParseIDs) to export entries. A waybill whose
// document cannot be loaded is exported without data.
func (s *Service) Entries(ctx context.Context, rawIDs string) ([]Entry, error) {
	ids := ParseIDs(rawIDs)
	s.logger.Info("Collecting waybills for export", "requested", rawIDs, "parsed", len(ids))

	waybills, err := s.source.ListWaybills(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list waybills: %w", err)
	}

	entries := make([]Entry, 0, len(waybills))
	for _, w := range waybills {
		doc, err := s.source.GetExtractedData(ctx, w.ID)
		if err != nil {
			s.logger.Warn("Extracted data unavailable", "waybillId", w.ID, "error", err)
			doc = nil
		}
		entries = append(entries, Entry{
			ID:         w.ID,
			UploadedAt: w.UploadedAt,
			ModelName:  w.ExtractionModelName,
			Processed:  w.Processed,
			Document:   doc,
		})
	}
	return entries, nil
}

// Export writes the workbook for rawIDs to out and returns its filename.
// A failing waybill listing degrades to the "No waybills found" summary.
func (s *Service) Export(ctx context.Context, rawIDs string, out io.Writer) (string, error) {
	now := s.now()

	entries, err := s.Entries(ctx, rawIDs)
	if err != nil {
		s.logger.Error("Export source failed, writing empty workbook", "error", err)
		entries = nil
	}

	if err := WriteWorkbook(out, entries, now); err != nil {
		return "", err
	}

	s.logger.Info("Workbook exported", "waybills", len(entries))
	return Filename(now), nil
}
