package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/waybill-worker/internal/errors"
)

// Backend identifies an OCR engine
type Backend string

const (
	BackendTextract  Backend = "textract"
	BackendMistral   Backend = "mistral"
	BackendTesseract Backend = "tesseract"
)

// ExtractionModel is one user-selectable extraction model
type ExtractionModel struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Backend     Backend `yaml:"backend"`
	Active      bool    `yaml:"active"`
}

type catalogFile struct {
	Models []ExtractionModel `yaml:"models"`
}

// DefaultModelCatalog is used when no catalog file is configured
func DefaultModelCatalog() []ExtractionModel {
	return []ExtractionModel{
		{Name: "Mistral", Description: "Mistral OCR markdown extraction", Backend: BackendMistral, Active: true},
		{Name: "AWS Textract", Description: "AWS Textract table and form analysis", Backend: BackendTextract, Active: true},
		{Name: "Tesseract", Description: "Local Tesseract OCR", Backend: BackendTesseract, Active: true},
	}
}

// LoadModelCatalog reads the catalog at path, or returns the default
// catalog when path is empty
func LoadModelCatalog(path string) ([]ExtractionModel, error) {
	if path == "" {
		return DefaultModelCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return ParseModelCatalog(data)
}

// ParseModelCatalog parses a YAML catalog of the form
//
//	models:
//	  - name: AWS Textract
//	    backend: textract
//	    active: true
func ParseModelCatalog(data []byte) ([]ExtractionModel, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	seen := make(map[string]bool, len(f.Models))
	for i, m := range f.Models {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("model %d has no name", i)
		}
		key := strings.ToLower(m.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate model name %q", m.Name)
		}
		seen[key] = true
		switch m.Backend {
		case "":
			f.Models[i].Backend = BackendForModel(m.Name)
		case BackendTextract, BackendMistral, BackendTesseract:
		default:
			return nil, errors.NewUnsupportedModelError(fmt.Sprintf("%s (backend %q)", m.Name, m.Backend))
		}
	}
	return f.Models, nil
}

// BackendForModel maps a stored model name to its backend. Unknown names
// use Mistral.
func BackendForModel(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "aws textract", "textract":
		return BackendTextract
	case "tesseract":
		return BackendTesseract
	default:
		return BackendMistral
	}
}
