package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 60 * time.Second
	requestIDHeader       = "X-Request-ID"
)

// Config describes how to reach the paper service.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the paper-processing API. It never retries; retry policy
// belongs to callers.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// New validates cfg and returns a ready client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{base: base, http: client, logger: logger.Named("api")}, nil
}

// Do issues a request against endpoint (a path relative to the server root,
// optionally with a query) and returns the body of a 2xx response.
func (c *Client) Do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	resp, err := c.send(ctx, method, endpoint, body, contentType, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

// JSON sends payload (if non-nil) as a JSON body and decodes the response
// into out (if non-nil).
func (c *Client) JSON(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	data, err := c.Do(ctx, method, endpoint, body, contentType)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return decodeError(err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body io.Reader, contentType string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), body)
	if err != nil {
		return nil, networkError(err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return nil, networkError(err)
	}
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)
	return resp, nil
}

func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.base + endpoint
}

// PaperPath returns the endpoint of a single paper.
func PaperPath(id PaperID) string {
	return "/api/papers/" + url.PathEscape(string(id))
}

// PagePath returns the endpoint rendering one page of a paper.
func PagePath(id PaperID, page int) string {
	return fmt.Sprintf("%s/pdf/page/%d", PaperPath(id), page)
}

// DocumentPath returns the endpoint serving the full PDF.
func DocumentPath(id PaperID) string {
	return PaperPath(id) + "/pdf"
}

// FullDocumentURL returns the absolute URL of the full PDF.
func (c *Client) FullDocumentURL(id PaperID) string {
	return c.resolve(DocumentPath(id))
}

func (c *Client) ListPapers(ctx context.Context) ([]PaperListItem, error) {
	var papers []PaperListItem
	if err := c.JSON(ctx, http.MethodGet, "/api/papers", nil, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

// UploadPaper submits content as the multipart field "file".
func (c *Client) UploadPaper(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("build upload: %w", err)
	}

	data, err := c.Do(ctx, http.MethodPost, "/api/papers/upload", &buf, writer.FormDataContentType())
	if err != nil {
		return UploadResult{}, err
	}
	var result UploadResult
	if err := json.Unmarshal(data, &result); err != nil {
		return UploadResult{}, decodeError(err)
	}
	return result, nil
}

func (c *Client) GetPaper(ctx context.Context, id PaperID) (Paper, error) {
	var paper Paper
	err := c.JSON(ctx, http.MethodGet, PaperPath(id), nil, &paper)
	return paper, err
}

func (c *Client) DeletePaper(ctx context.Context, id PaperID) (DeleteResult, error) {
	var result DeleteResult
	data, err := c.Do(ctx, http.MethodDelete, PaperPath(id), nil, "")
	if err != nil {
		return result, err
	}
	// The caller does not depend on the confirmation body.
	if len(bytes.TrimSpace(data)) > 0 {
		_ = json.Unmarshal(data, &result)
	}
	return result, nil
}

func (c *Client) ChatHistory(ctx context.Context, id PaperID) ([]ChatMessage, error) {
	var messages []ChatMessage
	if err := c.JSON(ctx, http.MethodGet, PaperPath(id)+"/chat", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) SendChat(ctx context.Context, id PaperID, message string) (ChatReply, error) {
	var reply ChatReply
	payload := map[string]string{"message": message}
	err := c.JSON(ctx, http.MethodPost, PaperPath(id)+"/chat", payload, &reply)
	return reply, err
}

func (c *Client) RefreshSummary(ctx context.Context, id PaperID) (Paper, error) {
	var paper Paper
	err := c.JSON(ctx, http.MethodPost, PaperPath(id)+"/refresh-summary", nil, &paper)
	return paper, err
}

func (c *Client) UpdateSummaryFromDiscussion(ctx context.Context, id PaperID) (Paper, error) {
	var paper Paper
	err := c.JSON(ctx, http.MethodPost, PaperPath(id)+"/update-summary-from-discussion", nil, &paper)
	return paper, err
}

// FetchPage downloads the single-page document behind locator.
func (c *Client) FetchPage(ctx context.Context, locator string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, locator, nil, "")
}
