package export

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

type fakeSource struct {
	waybills []*storage.WaybillImage
	docs     map[int64]document.StructuredDocument
	listErr  error
	docErr   map[int64]error
	lastIDs  []int64
}

func (s *fakeSource) ListWaybills(ctx context.Context, ids []int64) ([]*storage.WaybillImage, error) {
	s.lastIDs = ids
	if s.listErr != nil {
		return nil, s.listErr
	}
	if ids == nil {
		return s.waybills, nil
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*storage.WaybillImage
	for _, w := range s.waybills {
		if want[w.ID] {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeSource) GetExtractedData(ctx context.Context, id int64) (document.StructuredDocument, error) {
	if err := s.docErr[id]; err != nil {
		return nil, err
	}
	return s.docs[id], nil
}

func newService(src Source) *Service {
	s := NewService(src)
	s.now = func() time.Time { return generatedAt }
	return s
}

func sampleSource() *fakeSource {
	return &fakeSource{
		waybills: []*storage.WaybillImage{
			{ID: 1, Processed: true, ExtractionModelName: "AWS Textract"},
			{ID: 2},
			{ID: 3, Processed: true, ExtractionModelName: "Mistral"},
		},
		docs: map[int64]document.StructuredDocument{
			1: geometricSample(),
			3: &document.FallbackDocument{Backend: "mistral", Error: "boom", Note: "n"},
		},
		docErr: map[int64]error{},
	}
}

func exportSheets(t *testing.T, s *Service, raw string) []string {
	t.Helper()
	var buf bytes.Buffer
	name, err := s.Export(context.Background(), raw, &buf)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if name != "waybills_20240309_140507.xlsx" {
		t.Errorf("filename = %q", name)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	defer f.Close()
	return f.GetSheetList()
}

func TestExportAll(t *testing.T) {
	src := sampleSource()
	sheets := exportSheets(t, newService(src), "")

	if src.lastIDs != nil {
		t.Errorf("ids = %v, want nil", src.lastIDs)
	}
	// Summary, Waybill_1 plus two tables, Waybill_2, Waybill_3
	if len(sheets) != 6 {
		t.Errorf("sheets = %v", sheets)
	}
}

func TestExportSelection(t *testing.T) {
	src := sampleSource()
	sheets := exportSheets(t, newService(src), "2,junk,1")

	want := []string{"Summary", "Waybill_1", "Waybill_1_Table_1", "Waybill_1_Table_2", "Waybill_2"}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, sheets[i], want[i])
		}
	}
}

func TestExportNoValidIDs(t *testing.T) {
	src := sampleSource()
	sheets := exportSheets(t, newService(src), "abc")

	if src.lastIDs == nil || len(src.lastIDs) != 0 {
		t.Errorf("ids = %v, want empty selection", src.lastIDs)
	}
	if len(sheets) != 1 {
		t.Errorf("sheets = %v, want only Summary", sheets)
	}
}

func TestExportDocumentErrorDegrades(t *testing.T) {
	src := sampleSource()
	src.docErr[1] = fmt.Errorf("corrupt row")

	entries, err := newService(src).Entries(context.Background(), "1")
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Document != nil {
		t.Fatalf("entries = %+v, want one entry without document", entries)
	}
}

func TestExportListErrorWritesEmptyWorkbook(t *testing.T) {
	src := sampleSource()
	src.listErr = fmt.Errorf("database down")

	sheets := exportSheets(t, newService(src), "")
	if len(sheets) != 1 || sheets[0] != summarySheet {
		t.Errorf("sheets = %v", sheets)
	}
}
