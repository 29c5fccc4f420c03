package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

var generatedAt = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func reopen(t *testing.T, entries []Entry) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, entries, generatedAt); err != nil {
		t.Fatalf("WriteWorkbook() error: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	if err != nil {
		t.Fatalf("GetCellValue(%s, %s) error: %v", sheet, ref, err)
	}
	return v
}

func geometricSample() *document.GeometricDocument {
	return &document.GeometricDocument{
		Tables: []reconstruct.Grid{
			{
				Rows:        [][]string{{"Item", "Qty"}, {"Box", "2"}},
				Confidences: [][]float64{{99.5, 98}, {97.25, 96.004}},
			},
			{
				Rows:        [][]string{{"=SUM(A1)"}},
				Confidences: [][]float64{{90}},
			},
		},
		Forms: []reconstruct.FormField{
			{Key: "Sender", Value: "Acme Ltd", Confidence: 95.123},
			{Key: "Weight", Value: "12 kg", Confidence: 88},
		},
		RawText: "WAYBILL\nSender Acme Ltd\n",
	}
}

func TestWorkbookSummary(t *testing.T) {
	f := reopen(t, []Entry{
		{ID: 1, UploadedAt: generatedAt.Add(-time.Hour), ModelName: "AWS Textract", Processed: true, Document: geometricSample()},
		{ID: 2, UploadedAt: generatedAt.Add(-2 * time.Hour)},
	})

	tests := []struct {
		ref  string
		want string
	}{
		{"A1", "Waybill Extraction Summary"},
		{"A2", "Generated on"},
		{"B2", "2024-03-09 14:05:07"},
		{"A4", "Waybills"},
		{"A5", "ID"},
		{"B5", "Upload Date"},
		{"C5", "Extraction Model"},
		{"D5", "Processed"},
		{"A6", "1"},
		{"B6", "2024-03-09 13:05:07"},
		{"C6", "AWS Textract"},
		{"D6", "Yes"},
		{"A7", "2"},
		{"C7", "N/A"},
		{"D7", "No"},
	}
	for _, tt := range tests {
		if got := cell(t, f, summarySheet, tt.ref); got != tt.want {
			t.Errorf("Summary!%s = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestWorkbookEmpty(t *testing.T) {
	f := reopen(t, nil)

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != summarySheet {
		t.Fatalf("sheets = %v, want [Summary]", sheets)
	}
	if got := cell(t, f, summarySheet, "A4"); got != "No waybills found" {
		t.Errorf("A4 = %q", got)
	}
	if got := cell(t, f, summarySheet, "A5"); got != "" {
		t.Errorf("A5 = %q, want empty", got)
	}
}

func TestWorkbookSheetOrder(t *testing.T) {
	f := reopen(t, []Entry{
		{ID: 1, Processed: true, Document: geometricSample()},
		{ID: 2},
	})

	want := []string{"Summary", "Waybill_1", "Waybill_1_Table_1", "Waybill_1_Table_2", "Waybill_2"}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}

	if v := cell(t, f, "Waybill_2", "A1"); v != "No extracted data available" {
		t.Errorf("Waybill_2!A1 = %q", v)
	}
}

func TestWorkbookGeometricSheet(t *testing.T) {
	f := reopen(t, []Entry{{ID: 7, Processed: true, Document: geometricSample()}})

	tests := []struct {
		ref  string
		want string
	}{
		{"A1", "Field"},
		{"B1", "Value"},
		{"A2", "Form Fields"},
		{"A3", "Field"},
		{"B3", "Value"},
		{"C3", "Confidence"},
		{"A4", "Sender"},
		{"B4", "Acme Ltd"},
		{"C4", "95.12%"},
		{"A5", "Weight"},
		{"C5", "88.00%"},
		{"A8", "Raw Text"},
		{"A9", "WAYBILL\nSender Acme Ltd\n"},
	}
	for _, tt := range tests {
		if got := cell(t, f, "Waybill_7", tt.ref); got != tt.want {
			t.Errorf("Waybill_7!%s = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestWorkbookTableSheet(t *testing.T) {
	f := reopen(t, []Entry{{ID: 3, Processed: true, Document: geometricSample()}})

	tests := []struct {
		sheet string
		ref   string
		want  string
	}{
		{"Waybill_3_Table_1", "A1", "'Item"},
		{"Waybill_3_Table_1", "B2", "'2"},
		{"Waybill_3_Table_1", "A3", ""},
		{"Waybill_3_Table_1", "A4", "Confidence Scores (%)"},
		{"Waybill_3_Table_1", "A5", "99.50%"},
		{"Waybill_3_Table_1", "B5", "98.00%"},
		{"Waybill_3_Table_1", "A6", "97.25%"},
		{"Waybill_3_Table_1", "B6", "96.00%"},
		{"Waybill_3_Table_2", "A1", "'=SUM(A1)"},
		{"Waybill_3_Table_2", "A3", "Confidence Scores (%)"},
		{"Waybill_3_Table_2", "A4", "90.00%"},
	}
	for _, tt := range tests {
		if got := cell(t, f, tt.sheet, tt.ref); got != tt.want {
			t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.ref, got, tt.want)
		}
	}
}

func TestWorkbookEmptyTableCellsStayEmpty(t *testing.T) {
	doc := &document.GeometricDocument{
		Tables: []reconstruct.Grid{{
			Rows:        [][]string{{"A", ""}},
			Confidences: [][]float64{{50, 0}},
		}},
	}
	f := reopen(t, []Entry{{ID: 4, Document: doc}})

	if got := cell(t, f, "Waybill_4_Table_1", "B1"); got != "" {
		t.Errorf("B1 = %q, want empty", got)
	}
	if got := cell(t, f, "Waybill_4_Table_1", "B4"); got != "0.00%" {
		t.Errorf("B4 = %q, want 0.00%%", got)
	}
}

func TestWorkbookFlattenedSheet(t *testing.T) {
	doc := &document.FallbackDocument{
		Backend: "mistral",
		Error:   "timeout",
		Note:    "fallback data",
	}
	f := reopen(t, []Entry{{ID: 9, Processed: true, Document: doc}})

	rows, err := f.GetRows("Waybill_9")
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}
	want := [][]string{
		{"Field", "Value"},
		{"backend", "mistral"},
		{"error", "timeout"},
		{"note", "fallback data"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if len(rows[i]) != 2 || rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestWorkbookMarkdownFlattensNestedKeys(t *testing.T) {
	doc := &document.MarkdownDocument{
		OCRInfo: document.OCRInfo{Model: "mistral-ocr-latest"},
		Pages:   []document.MarkdownPage{{Index: 0, Markdown: "Sender: Acme"}},
		RawText: "Sender: Acme\n",
		Analysis: document.Analysis{
			Sender: document.PartyInfo{Info: "Sender: Acme"},
		},
	}
	f := reopen(t, []Entry{{ID: 5, Document: doc}})

	rows, err := f.GetRows("Waybill_5")
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}
	found := make(map[string]string)
	for _, r := range rows[1:] {
		if len(r) == 2 {
			found[r[0]] = r[1]
		} else if len(r) == 1 {
			found[r[0]] = ""
		}
	}
	checks := map[string]string{
		"ocr_info.model":                      "mistral-ocr-latest",
		"pages[0].markdown":                   "Sender: Acme",
		"extracted_text.analysis.sender.info": "Sender: Acme",
	}
	for k, v := range checks {
		if found[k] != v {
			t.Errorf("%s = %q, want %q", k, found[k], v)
		}
	}
}

func TestWorkbookLongIDsUseShortTableSheetNames(t *testing.T) {
	const id = int64(1234567890123456)
	f := reopen(t, []Entry{{ID: id, Processed: true, Document: geometricSample()}})

	want := []string{"Summary", "Waybill_1234567890123456", "WB_1234567890123456_T1", "WB_1234567890123456_T2"}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}
	if v := cell(t, f, "WB_1234567890123456_T1", "A1"); v != "'Item" {
		t.Errorf("A1 = %q", v)
	}
}

func TestTableSheetName(t *testing.T) {
	tests := []struct {
		id   int64
		n    int
		want string
	}{
		{id: 7, n: 1, want: "Waybill_7_Table_1"},
		{id: 123456789012345, n: 2, want: "Waybill_123456789012345_Table_2"},
		{id: 1234567890123456, n: 2, want: "WB_1234567890123456_T2"},
		{id: 9223372036854775807, n: 12, want: "WB_9223372036854775807_T12"},
	}
	for _, tt := range tests {
		got := tableSheetName(tt.id, tt.n)
		if got != tt.want {
			t.Errorf("tableSheetName(%d, %d) = %q, want %q", tt.id, tt.n, got, tt.want)
		}
		if len(got) > maxSheetNameLength {
			t.Errorf("tableSheetName(%d, %d) = %q exceeds %d characters", tt.id, tt.n, got, maxSheetNameLength)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(generatedAt); got != "waybills_20240309_140507.xlsx" {
		t.Errorf("Filename() = %q", got)
	}
}
