package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"docassistant/models"

	"go.uber.org/zap"
)

// Backend endpoint paths
const (
	PathProcessDocument = "/process-document"
	PathProcessMessage  = "/process-message"
	PathClearHistory    = "/clear-history"
	PathHealth          = "/health"
	PathStatus          = "/status"
)

// DocumentFormField is the multipart field carrying the uploaded file
const DocumentFormField = "file"

// ErrTransport marks failures where no usable answer came back: the request
// could not be sent, the connection dropped, or the body was not valid JSON.
var ErrTransport = errors.New("backend transport failure")

// Backend is the set of backend calls the session controller depends on
type Backend interface {
	ProcessDocument(ctx context.Context, filename string, r io.Reader) (models.DocumentReply, error)
	ProcessMessage(ctx context.Context, text string) (models.MessageReply, error)
	ClearHistory(ctx context.Context) error
	Status(ctx context.Context) (models.Metadata, error)
}

// BackendClient talks to the document assistant backend over plain HTTP
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBackendClient creates a client for the backend at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewBackendClient(baseURL string, timeout time.Duration, logger *zap.Logger) *BackendClient {
	if baseURL == "" {
		baseURL = "http://localhost:8000" // Default Flask port
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("backend"),
	}
}

// BaseURL returns the backend address requests are sent to
func (b *BackendClient) BaseURL() string {
	return b.baseURL
}

// ProcessDocument uploads a document for ingestion. Every HTTP status that comes
// with a JSON body is returned as a reply; only transport failures are errors.
func (b *BackendClient) ProcessDocument(ctx context.Context, filename string, r io.Reader) (models.DocumentReply, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile(DocumentFormField, filepath.Base(filename))
	if err != nil {
		return models.DocumentReply{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return models.DocumentReply{}, fmt.Errorf("failed to read document %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return models.DocumentReply{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+PathProcessDocument, &body)
	if err != nil {
		return models.DocumentReply{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var payload models.ProcessDocumentResponse
	status, err := b.doJSON(req, &payload)
	if err != nil {
		return models.DocumentReply{}, err
	}

	b.logger.Info("document processed",
		zap.String("file", filename),
		zap.Int("status", status),
		zap.Int("bytes", body.Len()))

	return models.DocumentReply{StatusCode: status, Text: payload.Text()}, nil
}

// ProcessMessage sends one sanitized question and returns the reply or error text
func (b *BackendClient) ProcessMessage(ctx context.Context, text string) (models.MessageReply, error) {
	jsonData, err := json.Marshal(models.ProcessMessageRequest{UserMessage: text})
	if err != nil {
		return models.MessageReply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+PathProcessMessage, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.MessageReply{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload models.ProcessMessageResponse
	status, err := b.doJSON(req, &payload)
	if err != nil {
		return models.MessageReply{}, err
	}

	b.logger.Debug("message processed", zap.Int("status", status), zap.Bool("error_payload", payload.Error != ""))

	return models.MessageReply{StatusCode: status, Text: payload.Text()}, nil
}

// ClearHistory asks the backend to drop its conversation history
func (b *BackendClient) ClearHistory(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+PathClearHistory, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: clear history: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("clear history returned status %d", resp.StatusCode)
	}
	return nil
}

// Health checks that the backend answers GET /health
func (b *BackendClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+PathHealth, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	var health models.HealthResponse
	status, err := b.doJSON(req, &health)
	if err != nil {
		return err
	}
	if status != http.StatusOK || health.Status != models.StatusHealthy {
		return fmt.Errorf("backend unhealthy: status %d, %q", status, health.Status)
	}
	return nil
}

// Status returns the backend's free-form status report
func (b *BackendClient) Status(ctx context.Context) (models.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+PathStatus, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var status models.Metadata
	code, err := b.doJSON(req, &status)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", code)
	}
	return status, nil
}

// GetStatus returns the client's configuration for diagnostics
func (b *BackendClient) GetStatus() map[string]interface{} {
	timeout := "none"
	if b.httpClient.Timeout > 0 {
		timeout = b.httpClient.Timeout.String()
	}
	return map[string]interface{}{
		"base_url": b.baseURL,
		"timeout":  timeout,
	}
}

// doJSON performs req and decodes the JSON body into out whatever the status
func (b *BackendClient) doJSON(req *http.Request, out interface{}) (int, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		b.logger.Warn("malformed backend response",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 256)))
		return resp.StatusCode, fmt.Errorf("%w: failed to decode response: %w", ErrTransport, err)
	}

	return resp.StatusCode, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
