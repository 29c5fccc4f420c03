package reconstruct

import "testing"

func TestCellText(t *testing.T) {
	words := Words{{Text: "Overlap", Box: box(0.12, 0.12, 0.05, 0.03)}}
	cellBox := box(0.1, 0.1, 0.2, 0.1)

	t.Run("pre-resolved text wins", func(t *testing.T) {
		cell := Cell{Box: cellBox, Text: "Given", HasText: true}
		if got := CellText(cell, words); got != "Given" {
			t.Errorf("CellText() = %q, want %q", got, "Given")
		}
	})

	t.Run("pre-resolved empty text is kept", func(t *testing.T) {
		cell := Cell{Box: cellBox, HasText: true}
		if got := CellText(cell, words); got != "" {
			t.Errorf("CellText() = %q, want empty", got)
		}
	})

	t.Run("falls back to overlap", func(t *testing.T) {
		cell := Cell{Box: cellBox}
		if got := CellText(cell, words); got != "Overlap" {
			t.Errorf("CellText() = %q, want %q", got, "Overlap")
		}
	})

	t.Run("nil resolver", func(t *testing.T) {
		if got := CellText(Cell{Box: cellBox}, nil); got != "" {
			t.Errorf("CellText() = %q, want empty", got)
		}
	})
}

func TestEscapeCellText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "Acme", want: "'Acme"},
		{in: `He said "hi"`, want: `'He said ""hi""`},
		{in: "=SUM(A1:A2)", want: "'=SUM(A1:A2)"},
		{in: "007", want: "'007"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := EscapeCellText(tt.in); got != tt.want {
				t.Errorf("EscapeCellText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
