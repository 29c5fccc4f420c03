package reconstruct

// FormField is one resolved key/value pair. Confidence is on the backend's
// 0-100 scale.
type FormField struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FormFields is an insertion-ordered key/value mapping. Setting an existing
// key replaces its value and confidence but keeps its position.
type FormFields struct {
	fields []FormField
	index  map[string]int
}

// NewFormFields returns an empty mapping
func NewFormFields() *FormFields {
	return &FormFields{index: make(map[string]int)}
}

// Set inserts or updates a field
func (f *FormFields) Set(field FormField) {
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if i, ok := f.index[field.Key]; ok {
		f.fields[i] = field
		return
	}
	f.index[field.Key] = len(f.fields)
	f.fields = append(f.fields, field)
}

// Get looks a field up by key
func (f *FormFields) Get(key string) (FormField, bool) {
	i, ok := f.index[key]
	if !ok {
		return FormField{}, false
	}
	return f.fields[i], true
}

// Len returns the number of distinct keys
func (f *FormFields) Len() int {
	return len(f.fields)
}

// Fields returns a copy of the fields in insertion order
func (f *FormFields) Fields() []FormField {
	out := make([]FormField, len(f.fields))
	copy(out, f.fields)
	return out
}

// ExtractForms pairs KEY regions with their VALUE regions in scan order.
// A pair is kept only when both sides resolve to non-empty text. The value
// region's confidence replaces the key's when the value region exists.
func ExtractForms(page *Page, words TextResolver) *FormFields {
	forms := NewFormFields()

	for _, b := range page.Blocks {
		if b.Type != BlockKeyValueSet || !b.HasEntityType(EntityKey) {
			continue
		}

		key := regionText(b, words)
		value := ""
		confidence := b.Confidence

		for _, id := range b.RelatedIDs(RelationshipValue) {
			vb, ok := page.Block(id)
			if !ok {
				continue
			}
			value = regionText(vb, words)
			confidence = vb.Confidence
		}

		if key == "" || value == "" {
			continue
		}
		forms.Set(FormField{Key: key, Value: value, Confidence: confidence})
	}

	return forms
}

func regionText(b Block, words TextResolver) string {
	return CellText(Cell{Box: b.Box, Text: b.Text, HasText: b.HasText}, words)
}
