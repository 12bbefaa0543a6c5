package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/crop-uploader/internal/model"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// HTTPService uploads files to a running uploadd with a multipart POST.
type HTTPService struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewHTTPService creates a client for the upload service at endpoint.
// requestsPerMinute <= 0 disables client-side throttling.
func NewHTTPService(endpoint, apiKey string, timeout time.Duration, requestsPerMinute int, logger *zap.Logger) *HTTPService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		// rate.Every converts "one event per interval" to a Limit.
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return &HTTPService{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		logger:   logger,
	}
}

// Upload posts one file with its metadata and decodes the descriptors the
// service returns.
func (h *HTTPService) Upload(ctx context.Context, file *model.RawImage, meta model.FileMetadata) ([]model.UploadedFile, error) {
	// Wait blocks until the limiter allows another request, or ctx ends.
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, contentType, err := multipartBody(file, meta)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/api/v1/files", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "crop-uploader/1.0")
	if h.apiKey != "" {
		req.Header.Set("X-API-Key", h.apiKey)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	h.logger.Debug("upload request finished",
		zap.String("file", file.Name),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload service returned %d: %s", resp.StatusCode, errorMessage(data))
	}

	var files []model.UploadedFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return files, nil
}

func multipartBody(file *model.RawImage, meta model.FileMetadata) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// CreateFormFile always writes application/octet-stream; build the
	// part header by hand to keep the real type.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MIMEType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}

	if err := w.WriteField("purpose", meta.Purpose); err != nil {
		return nil, "", fmt.Errorf("writing purpose: %w", err)
	}
	if err := w.WriteField("parent_id", meta.ParentID); err != nil {
		return nil, "", fmt.Errorf("writing parent_id: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessage pulls the "error" field out of a JSON error body, falling
// back to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
