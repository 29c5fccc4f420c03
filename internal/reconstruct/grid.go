package reconstruct

// Grid is a dense table reconstructed from sparse cell detections.
// Rows and Confidences always have the same shape.
type Grid struct {
	Rows        [][]string  `json:"rows"`
	Confidences [][]float64 `json:"confidence_scores"`
}

// RowCount returns the number of rows
func (g *Grid) RowCount() int {
	return len(g.Rows)
}

// ColumnCount returns the number of columns
func (g *Grid) ColumnCount() int {
	if len(g.Rows) == 0 {
		return 0
	}
	return len(g.Rows[0])
}

type placedCell struct {
	row, col   int
	text       string
	confidence float64
}

// BuildGrid reconstructs the table whose children are childIDs. Ids that do
// not resolve to CELL blocks are ignored, as are cells without a positive
// row and column index. The second return value is false when no cell was
// found, which callers treat as "skip this table".
//
// Grid dimensions are the largest row and column index observed. Positions
// no cell claimed keep the zero value. When two cells claim the same
// position the later one in childIDs wins.
func BuildGrid(page *Page, childIDs []string, words TextResolver) (*Grid, bool) {
	var cells []placedCell
	maxRow, maxCol := 0, 0

	for _, id := range childIDs {
		b, ok := page.Block(id)
		if !ok || b.Type != BlockCell {
			continue
		}
		if b.RowIndex < 1 || b.ColumnIndex < 1 {
			continue
		}

		cell := CellFromBlock(b)
		cells = append(cells, placedCell{
			row:        cell.Row,
			col:        cell.Column,
			text:       CellText(cell, words),
			confidence: cell.Confidence,
		})
		maxRow = max(maxRow, cell.Row)
		maxCol = max(maxCol, cell.Column)
	}

	if len(cells) == 0 {
		return nil, false
	}

	grid := &Grid{
		Rows:        make([][]string, maxRow),
		Confidences: make([][]float64, maxRow),
	}
	for r := 0; r < maxRow; r++ {
		grid.Rows[r] = make([]string, maxCol)
		grid.Confidences[r] = make([]float64, maxCol)
	}

	for _, c := range cells {
		grid.Rows[c.row-1][c.col-1] = c.text
		grid.Confidences[c.row-1][c.col-1] = c.confidence
	}

	return grid, true
}
