package processor

import (
	"context"
	"fmt"
	"testing"

	"github.com/adverant/nexus/waybill-worker/internal/config"
	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/errors"
)

func fullConfig() *config.Config {
	return &config.Config{
		AWSAccessKeyID:     "id",
		AWSSecretAccessKey: "secret",
		MistralAPIKey:      "key",
		MaxImageSize:       1 << 20,
	}
}

func TestExtractRoutesByModelName(t *testing.T) {
	e := NewExtractor(&ExtractorConfig{
		Config:    fullConfig(),
		Textract:  &fakeGeometric{blocks: waybillBlocks()},
		Mistral:   &fakeMarkdown{},
		Tesseract: &fakeMarkdown{},
	})

	tests := []struct {
		model string
		want  document.Kind
	}{
		{model: "AWS Textract", want: document.KindGeometric},
		{model: "Mistral", want: document.KindMarkdown},
		{model: "Tesseract", want: document.KindMarkdown},
		{model: "Unknown Model", want: document.KindMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			doc, err := e.Extract(context.Background(), "job", tt.model, []byte("From: ACME"))
			if err != nil {
				t.Fatalf("Extract() error: %v", err)
			}
			if doc.Kind() != tt.want {
				t.Errorf("Kind() = %s, want %s", doc.Kind(), tt.want)
			}
		})
	}
}

func TestExtractConfigurationMissing(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *config.Config
		ec    ExtractorConfig
		model string
	}{
		{name: "textract credentials", cfg: &config.Config{MistralAPIKey: "k"}, ec: ExtractorConfig{Textract: &fakeGeometric{}}, model: "aws textract"},
		{name: "mistral credentials", cfg: &config.Config{}, ec: ExtractorConfig{Mistral: &fakeMarkdown{}}, model: "mistral"},
		{name: "textract client", cfg: fullConfig(), ec: ExtractorConfig{}, model: "AWS Textract"},
		{name: "default model falls to mistral", cfg: &config.Config{}, ec: ExtractorConfig{Mistral: &fakeMarkdown{}}, model: "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := tt.ec
			ec.Config = tt.cfg
			e := NewExtractor(&ec)

			_, err := e.Extract(context.Background(), "job", tt.model, []byte("x"))
			pe, ok := errors.AsProcessingError(err)
			if !ok || !pe.IsServiceUnavailable() {
				t.Errorf("error = %v, want CONFIGURATION_MISSING", err)
			}
		})
	}
}

func TestExtractBackendFailure(t *testing.T) {
	failing := &fakeGeometric{err: fmt.Errorf("ThrottlingException")}

	t.Run("fail policy returns error", func(t *testing.T) {
		e := NewExtractor(&ExtractorConfig{Config: fullConfig(), Textract: failing})
		doc, err := e.Extract(context.Background(), "job-1", "AWS Textract", []byte("x"))
		if doc != nil {
			t.Errorf("doc = %v, want nil", doc)
		}
		if !errors.HasCode(err, errors.ErrorBackendCallFailed) {
			t.Errorf("error = %v, want BACKEND_CALL_FAILED", err)
		}
	})

	t.Run("fallback policy returns document", func(t *testing.T) {
		e := NewExtractor(&ExtractorConfig{Config: fullConfig(), Textract: failing, Policy: FallbackPolicy{}})
		doc, err := e.Extract(context.Background(), "job-2", "AWS Textract", []byte("x"))
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		fb, ok := doc.(*document.FallbackDocument)
		if !ok {
			t.Fatalf("doc = %T, want *FallbackDocument", doc)
		}
		if fb.Error != "ThrottlingException" || fb.Note == "" || fb.Backend != "textract" {
			t.Errorf("fallback = %+v", fb)
		}
	})
}

func TestExtractRejectsOversizedImages(t *testing.T) {
	cfg := fullConfig()
	cfg.MaxImageSize = 4
	e := NewExtractor(&ExtractorConfig{Config: cfg, Mistral: &fakeMarkdown{}})

	_, err := e.Extract(context.Background(), "job", "Mistral", []byte("too large"))
	if !errors.HasCode(err, errors.ErrorUnsupportedFormat) {
		t.Errorf("error = %v, want UNSUPPORTED_FORMAT", err)
	}
}
