/**
 * Mistral Client - Markdown OCR for waybill images
 *
 * Sends the image as a base64 data URL to the Mistral OCR endpoint and
 * returns the per-page markdown. Structure is recovered later by the
 * markdown normalizer.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/waybill-worker/internal/logging"
)

// MistralClient handles communication with the Mistral OCR API
type MistralClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

// MistralConfig holds Mistral client configuration
type MistralConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// mistralOCRRequest is the body of POST /v1/ocr
type mistralOCRRequest struct {
	Model              string          `json:"model"`
	Document           mistralDocument `json:"document"`
	IncludeImageBase64 bool            `json:"include_image_base64"`
}

type mistralDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url,omitempty"`
	DocURL   string `json:"document_url,omitempty"`
}

// NewMistralClient creates a new Mistral OCR client
func NewMistralClient(cfg *MistralConfig) *MistralClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second // OCR of large scans can take time
	}
	model := cfg.Model
	if model == "" {
		model = "mistral-ocr-latest"
	}

	return &MistralClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("MistralClient"),
	}
}

// Name identifies the backend in logs and errors
func (c *MistralClient) Name() string {
	return "mistral"
}

// ProcessImage runs OCR over a single waybill image
func (c *MistralClient) ProcessImage(ctx context.Context, imageData []byte) (*OCRResponse, error) {
	mimeType := DetectImageMIME(imageData)
	if mimeType == "application/octet-stream" {
		// Scanners mostly produce JPEG; let the backend decide
		mimeType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))
	doc := mistralDocument{Type: "image_url", ImageURL: dataURL}
	if mimeType == "application/pdf" {
		doc = mistralDocument{Type: "document_url", DocURL: dataURL}
	}

	c.logger.Info("Requesting OCR from Mistral",
		"model", c.model,
		"mimeType", mimeType,
		"imageSize", len(imageData))

	reqBody, err := json.Marshal(mistralOCRRequest{
		Model:    c.model,
		Document: doc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/ocr", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Source", "waybill-worker")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to Mistral failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Mistral returned error status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp OCRResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Info("OCR complete",
		"model", ocrResp.Model,
		"pages", len(ocrResp.Pages),
		"duration", time.Since(startTime))

	return &ocrResp, nil
}
