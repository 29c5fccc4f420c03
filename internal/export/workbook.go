/**
 * Workbook export of extracted waybills
 *
 * Layout:
 * - "Summary": title, generation time and one row per waybill
 * - "Waybill_<id>": form fields and raw text, a flattened field list, or a
 *   note that no data is available
 * - "Waybill_<id>_Table_<n>": one per reconstructed table, followed by
 *   its confidence grid
 */

package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

// ContentType is the MIME type of the exported workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	summarySheet    = "Summary"
	timestampLayout = "2006-01-02 15:04:05"

	// maxSheetNameLength is the longest sheet name Excel accepts
	maxSheetNameLength = 31
)

// Entry is one waybill to export. A nil Document means extraction never
// completed.
type Entry struct {
	ID         int64
	UploadedAt time.Time
	ModelName  string
	Processed  bool
	Document   document.StructuredDocument
}

// Filename returns the download name for a workbook generated at t
func Filename(t time.Time) string {
	return fmt.Sprintf("waybills_%s.xlsx", t.Format("20060102_150405"))
}

// BuildWorkbook renders entries into a workbook. Sheets are appended in
// entry order.
func BuildWorkbook(entries []Entry, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}

	w := &sheetWriter{f: f}
	writeSummary(w, entries, generatedAt)

	for _, e := range entries {
		writeEntry(w, e)
	}

	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// WriteWorkbook builds the workbook and writes it to out
func WriteWorkbook(out io.Writer, entries []Entry, generatedAt time.Time) error {
	f, err := BuildWorkbook(entries, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(w *sheetWriter, entries []Entry, generatedAt time.Time) {
	w.set(summarySheet, 1, 1, "Waybill Extraction Summary")
	w.set(summarySheet, 1, 2, "Generated on")
	w.set(summarySheet, 2, 2, generatedAt.Format(timestampLayout))

	if len(entries) == 0 {
		w.set(summarySheet, 1, 4, "No waybills found")
		return
	}

	w.set(summarySheet, 1, 4, "Waybills")
	w.row(summarySheet, 5, "ID", "Upload Date", "Extraction Model", "Processed")

	for i, e := range entries {
		model := e.ModelName
		if model == "" {
			model = "N/A"
		}
		processed := "No"
		if e.Processed {
			processed = "Yes"
		}
		w.row(summarySheet, 6+i, e.ID, e.UploadedAt.Format(timestampLayout), model, processed)
	}
}

func writeEntry(w *sheetWriter, e Entry) {
	sheet := fmt.Sprintf("Waybill_%d", e.ID)
	w.newSheet(sheet)

	switch doc := e.Document.(type) {
	case nil:
		w.set(sheet, 1, 1, "No extracted data available")
	case *document.GeometricDocument:
		writeGeometric(w, sheet, e.ID, doc)
	default:
		writeFlattened(w, sheet, doc)
	}
}

func writeGeometric(w *sheetWriter, sheet string, id int64, doc *document.GeometricDocument) {
	for i, table := range doc.Tables {
		tableSheet := tableSheetName(id, i+1)
		w.newSheet(tableSheet)
		writeTable(w, tableSheet, table)
	}

	w.row(sheet, 1, "Field", "Value")
	w.set(sheet, 1, 2, "Form Fields")
	w.row(sheet, 3, "Field", "Value", "Confidence")

	row := 4
	for _, field := range doc.Forms {
		w.row(sheet, row, field.Key, field.Value, formatConfidence(field.Confidence))
		row++
	}

	w.set(sheet, 1, row+2, "Raw Text")
	w.set(sheet, 1, row+3, doc.RawText)
}

// writeTable writes the escaped grid, a blank row, a label row and the
// confidence grid in the same shape
func writeTable(w *sheetWriter, sheet string, table reconstruct.Grid) {
	for r, cells := range table.Rows {
		for c, text := range cells {
			w.set(sheet, c+1, r+1, reconstruct.EscapeCellText(text))
		}
	}

	labelRow := len(table.Rows) + 2
	w.set(sheet, 1, labelRow, "Confidence Scores (%)")

	for r, scores := range table.Confidences {
		for c, score := range scores {
			w.set(sheet, c+1, labelRow+1+r, formatConfidence(score))
		}
	}
}

func writeFlattened(w *sheetWriter, sheet string, doc document.StructuredDocument) {
	w.row(sheet, 1, "Field", "Value")
	for i, entry := range document.Flatten(doc.ToMap()) {
		w.row(sheet, 2+i, entry.Key, entry.Value)
	}
}

// tableSheetName returns "Waybill_<id>_Table_<n>", or the shorter
// "WB_<id>_T<n>" when the full name would exceed the sheet name limit
func tableSheetName(id int64, n int) string {
	name := fmt.Sprintf("Waybill_%d_Table_%d", id, n)
	if len(name) <= maxSheetNameLength {
		return name
	}
	return fmt.Sprintf("WB_%d_T%d", id, n)
}

func formatConfidence(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// sheetWriter keeps the first error so rendering code stays linear
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) newSheet(name string) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
}

func (w *sheetWriter) set(sheet string, col, row int, value interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(sheet, cell, value); err != nil {
		w.err = fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
}

func (w *sheetWriter) row(sheet string, row int, values ...interface{}) {
	for i, v := range values {
		w.set(sheet, i+1, row, v)
	}
}
