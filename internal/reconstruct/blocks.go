/**
 * Detection model for geometric OCR responses
 *
 * A page is described as a flat list of blocks linked by id. Words and lines
 * carry text; cells carry a grid position; tables and key/value regions
 * reference their children through relationships.
 */

package reconstruct

// BlockType identifies the kind of detection a Block represents
type BlockType string

const (
	BlockWord        BlockType = "WORD"
	BlockLine        BlockType = "LINE"
	BlockCell        BlockType = "CELL"
	BlockTable       BlockType = "TABLE"
	BlockKeyValueSet BlockType = "KEY_VALUE_SET"
)

// RelationshipType identifies the edge kind between two blocks
type RelationshipType string

const (
	RelationshipChild RelationshipType = "CHILD"
	RelationshipValue RelationshipType = "VALUE"
)

// EntityType tags a KEY_VALUE_SET block as the key or the value side
type EntityType string

const (
	EntityKey   EntityType = "KEY"
	EntityValue EntityType = "VALUE"
)

// BoundingBox is an axis-aligned box in normalized page coordinates (0..1)
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge of the box
func (b BoundingBox) Right() float64 {
	return b.Left + b.Width
}

// Bottom returns the bottom edge of the box
func (b BoundingBox) Bottom() float64 {
	return b.Top + b.Height
}

// Area returns width times height
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Expand grows the box by margin on every side
func (b BoundingBox) Expand(margin float64) BoundingBox {
	return BoundingBox{
		Left:   b.Left - margin,
		Top:    b.Top - margin,
		Width:  b.Width + 2*margin,
		Height: b.Height + 2*margin,
	}
}

// Relationship links a block to other blocks by id
type Relationship struct {
	Type RelationshipType `json:"type"`
	IDs  []string         `json:"ids"`
}

// Block is a single detection returned by a geometric OCR backend
type Block struct {
	ID            string         `json:"id"`
	Type          BlockType      `json:"type"`
	Text          string         `json:"text,omitempty"`
	HasText       bool           `json:"hasText,omitempty"`
	Box           BoundingBox    `json:"box"`
	Confidence    float64        `json:"confidence"`
	RowIndex      int            `json:"rowIndex,omitempty"`
	ColumnIndex   int            `json:"columnIndex,omitempty"`
	EntityTypes   []EntityType   `json:"entityTypes,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// HasEntityType reports whether the block is tagged with the given entity type
func (b Block) HasEntityType(t EntityType) bool {
	for _, et := range b.EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// RelatedIDs returns the ids of every relationship of the given type, in order
func (b Block) RelatedIDs(t RelationshipType) []string {
	var ids []string
	for _, rel := range b.Relationships {
		if rel.Type == t {
			ids = append(ids, rel.IDs...)
		}
	}
	return ids
}

// Word is a single recognized token with its position
type Word struct {
	Text string
	Box  BoundingBox
}

// Cell is a table cell detection with its 1-based grid position.
// Text is only meaningful when HasText is set.
type Cell struct {
	Row        int
	Column     int
	Box        BoundingBox
	Confidence float64
	Text       string
	HasText    bool
}

// Page groups the blocks of one analyzed image with lookup helpers
type Page struct {
	Blocks []Block
	byID   map[string]Block
	words  []Word
}

// NewPage indexes blocks by id and collects WORD blocks in detection order
func NewPage(blocks []Block) *Page {
	p := &Page{
		Blocks: blocks,
		byID:   make(map[string]Block, len(blocks)),
	}
	for _, b := range blocks {
		p.byID[b.ID] = b
		if b.Type == BlockWord {
			p.words = append(p.words, Word{Text: b.Text, Box: b.Box})
		}
	}
	return p
}

// Block looks a block up by id
func (p *Page) Block(id string) (Block, bool) {
	b, ok := p.byID[id]
	return b, ok
}

// Words returns the WORD detections in detection order
func (p *Page) Words() []Word {
	return p.words
}

// CellFromBlock converts a CELL block into a Cell
func CellFromBlock(b Block) Cell {
	return Cell{
		Row:        b.RowIndex,
		Column:     b.ColumnIndex,
		Box:        b.Box,
		Confidence: b.Confidence,
		Text:       b.Text,
		HasText:    b.HasText,
	}
}
