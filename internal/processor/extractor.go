package processor

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/waybill-worker/internal/clients"
	"github.com/adverant/nexus/waybill-worker/internal/config"
	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/errors"
	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

// GeometricBackend returns positioned blocks for an image
type GeometricBackend interface {
	Name() string
	AnalyzeDocument(ctx context.Context, imageData []byte) ([]reconstruct.Block, error)
}

// MarkdownBackend returns per-page markdown for an image
type MarkdownBackend interface {
	Name() string
	ProcessImage(ctx context.Context, imageData []byte) (*clients.OCRResponse, error)
}

// RecoveryPolicy decides what happens when a backend call fails
type RecoveryPolicy interface {
	// Recover returns a replacement document, or false to surface err
	Recover(backend string, err error) (document.StructuredDocument, bool)
}

// FailPolicy surfaces every backend failure
type FailPolicy struct{}

func (FailPolicy) Recover(string, error) (document.StructuredDocument, bool) {
	return nil, false
}

// FallbackPolicy stores a FallbackDocument describing the failure
type FallbackPolicy struct{}

func (FallbackPolicy) Recover(backend string, err error) (document.StructuredDocument, bool) {
	return &document.FallbackDocument{
		Backend: backend,
		Error:   err.Error(),
		Note:    fmt.Sprintf("Extraction with %s failed; no structured data is available for this waybill.", backend),
	}, true
}

// ExtractorConfig wires an Extractor. Backends left nil are treated as
// not configured.
type ExtractorConfig struct {
	Config    *config.Config
	Textract  GeometricBackend
	Mistral   MarkdownBackend
	Tesseract MarkdownBackend
	Policy    RecoveryPolicy
}

// Extractor routes a waybill image to the backend of its extraction model
// and normalizes the response
type Extractor struct {
	cfg       *config.Config
	textract  GeometricBackend
	mistral   MarkdownBackend
	tesseract MarkdownBackend
	policy    RecoveryPolicy
	logger    *logging.Logger
}

// NewExtractor creates an Extractor from explicit backends
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	policy := cfg.Policy
	if policy == nil {
		policy = FailPolicy{}
	}
	return &Extractor{
		cfg:       cfg.Config,
		textract:  cfg.Textract,
		mistral:   cfg.Mistral,
		tesseract: cfg.Tesseract,
		policy:    policy,
		logger:    logging.NewLogger("Extractor"),
	}
}

// NewExtractorFromConfig builds every backend whose credentials are present
func NewExtractorFromConfig(ctx context.Context, cfg *config.Config) (*Extractor, error) {
	ec := &ExtractorConfig{
		Config: cfg,
		Tesseract: clients.NewTesseractClient(&clients.TesseractConfig{
			Languages: cfg.TesseractLanguages,
		}),
	}

	if cfg.RequireBackend(config.BackendTextract) == nil {
		textract, err := clients.NewTextractClient(ctx, &clients.TextractConfig{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Region:          cfg.AWSRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Textract client: %w", err)
		}
		ec.Textract = textract
	}

	if cfg.RequireBackend(config.BackendMistral) == nil {
		ec.Mistral = clients.NewMistralClient(&clients.MistralConfig{
			BaseURL: cfg.MistralAPIURL,
			APIKey:  cfg.MistralAPIKey,
			Model:   cfg.MistralOCRModel,
			Timeout: cfg.Timeout(),
		})
	}

	if cfg.FallbackOnBackendError {
		ec.Policy = FallbackPolicy{}
	}

	return NewExtractor(ec), nil
}

// CheckModel resolves the backend for a model name and verifies it can be
// used. It returns a CONFIGURATION_MISSING error when credentials or the
// client are absent.
func (e *Extractor) CheckModel(modelName string) (config.Backend, error) {
	backend := config.BackendForModel(modelName)

	if e.cfg != nil {
		if err := e.cfg.RequireBackend(backend); err != nil {
			return backend, err
		}
	}

	switch backend {
	case config.BackendTextract:
		if e.textract == nil {
			return backend, errors.NewConfigurationMissingError("AWS Textract", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY")
		}
	case config.BackendMistral:
		if e.mistral == nil {
			return backend, errors.NewConfigurationMissingError("Mistral", "MISTRAL_API_KEY")
		}
	case config.BackendTesseract:
		if e.tesseract == nil {
			return backend, errors.NewConfigurationMissingError("Tesseract", "TESSERACT_LANGUAGES")
		}
	}
	return backend, nil
}

// Extract runs one image through the backend selected by modelName.
// Backend failures come back as BACKEND_CALL_FAILED errors unless the
// recovery policy supplies a document.
func (e *Extractor) Extract(ctx context.Context, jobID, modelName string, imageData []byte) (document.StructuredDocument, error) {
	backend, err := e.CheckModel(modelName)
	if err != nil {
		return nil, err
	}

	if e.cfg != nil && e.cfg.MaxImageSize > 0 && int64(len(imageData)) > e.cfg.MaxImageSize {
		return nil, errors.NewUnsupportedFormatError(jobID, fmt.Sprintf("image of %d bytes exceeds %d", len(imageData), e.cfg.MaxImageSize))
	}

	log := e.logger.With("jobId", jobID, "backend", backend)
	log.Info("Extracting waybill", "model", modelName, "imageSize", len(imageData))

	var doc document.StructuredDocument
	var callErr error

	switch backend {
	case config.BackendTextract:
		var blocks []reconstruct.Block
		blocks, callErr = e.textract.AnalyzeDocument(ctx, imageData)
		if callErr == nil {
			doc = NormalizeGeometric(blocks)
		}
	case config.BackendTesseract:
		var resp *clients.OCRResponse
		resp, callErr = e.tesseract.ProcessImage(ctx, imageData)
		if callErr == nil {
			doc = NormalizeMarkdown(resp)
		}
	default:
		var resp *clients.OCRResponse
		resp, callErr = e.mistral.ProcessImage(ctx, imageData)
		if callErr == nil {
			doc = NormalizeMarkdown(resp)
		}
	}

	if callErr != nil {
		wrapped := errors.NewBackendCallFailedError(jobID, string(backend), callErr)
		if recovered, ok := e.policy.Recover(string(backend), callErr); ok {
			log.Warn("Backend call failed, storing fallback document", "error", callErr)
			return recovered, nil
		}
		log.Error("Backend call failed", "error", callErr)
		return nil, wrapped
	}

	log.Info("Extraction complete", "kind", doc.Kind())
	return doc, nil
}
