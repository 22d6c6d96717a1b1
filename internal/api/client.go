// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/threadline/internal/auth"
	"github.com/jeranaias/threadline/internal/model"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of attempts for idempotent requests.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff delay.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize caps buffered (non-streamed) response bodies.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// threadsPath is appended to the base URL.
	threadsPath = "api/thread/"

	userAgent = "threadline/0.1"
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedTransport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	sharedHTTPClient = &http.Client{Transport: sharedTransport, Timeout: DefaultTimeout}

	// sharedStreamingClient has no timeout; replies stream for as long as
	// the request context allows.
	sharedStreamingClient = &http.Client{Transport: sharedTransport}
)

// Authorizer is the gate every request passes through.
type Authorizer interface {
	Expired() bool
	Token() (string, error)
}

// Client talks to the thread backend.
type Client struct {
	baseURL      string
	auth         Authorizer
	httpClient   *http.Client
	streamClient *http.Client
	maxRetries   int
	limiter      *rate.Limiter
	log          *zap.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, auth Authorizer) *Client {
	return &Client{
		baseURL:      normalizeBase(baseURL),
		auth:         auth,
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		maxRetries:   DefaultMaxRetries,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		log:          zap.NewNop(),
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: timeout}
	return c
}

// WithMaxRetries sets the number of attempts for idempotent requests.
func (c *Client) WithMaxRetries(n int) *Client {
	if n < 1 {
		n = 1
	}
	c.maxRetries = n
	return c
}

// WithRateLimit limits outbound requests to rps per second with the given
// burst. rps <= 0 disables limiting.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithHTTPClient replaces both underlying HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log *zap.Logger) *Client {
	c.log = log.Named("api")
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBase(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// threadURL builds {base}api/thread/[{id}/][messages].
func (c *Client) threadURL(id model.ThreadID, messages bool) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(threadsPath)
	if id != model.NoThread {
		b.WriteString(id.String())
		b.WriteString("/")
	}
	if messages {
		b.WriteString("messages")
	}
	return b.String()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// ListThreads fetches every thread of the user.
func (c *Client) ListThreads(ctx context.Context) ([]ThreadDTO, error) {
	url := c.threadURL(model.NoThread, false)
	resp, err := c.doWithRetry(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	var threads []ThreadDTO
	if err := json.Unmarshal(body, &threads); err != nil {
		return nil, fmt.Errorf("failed to parse thread list: %w", err)
	}
	return threads, nil
}

// CreateThread creates a thread with its first message.
func (c *Client) CreateThread(ctx context.Context, req CreateThreadRequest) (*Reply, error) {
	return c.post(ctx, c.threadURL(model.NoThread, false), req)
}

// PostMessage appends a message to an existing thread.
func (c *Client) PostMessage(ctx context.Context, id model.ThreadID, text string) (*Reply, error) {
	return c.post(ctx, c.threadURL(id, true), postMessageRequest{Text: text})
}

// RenameThread changes a thread's title.
func (c *Client) RenameThread(ctx context.Context, id model.ThreadID, title string) error {
	resp, err := c.doWithRetry(ctx, http.MethodPatch, c.threadURL(id, false), renameRequest{Title: title})
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// DeleteThread removes a thread.
func (c *Client) DeleteThread(ctx context.Context, id model.ThreadID) error {
	resp, err := c.doWithRetry(ctx, http.MethodDelete, c.threadURL(id, false), nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// post sends a single attempt and classifies the successful reply.
func (c *Client) post(ctx context.Context, url string, payload any) (*Reply, error) {
	resp, err := c.do(ctx, c.streamClient, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		drain(resp)
		return &Reply{}, nil
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return &Reply{Body: resp.Body}, nil
	}

	defer resp.Body.Close()
	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &Reply{}, nil
	}

	var shape struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil, fmt.Errorf("failed to parse reply: %w", err)
	}
	if shape.Messages != nil {
		var t ThreadDTO
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("failed to parse thread: %w", err)
		}
		return &Reply{Thread: &t}, nil
	}
	var m MessageDTO
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &Reply{Message: &m}, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs one request. Non-2xx responses are returned as *FetchError
// with the body consumed.
func (c *Client) do(ctx context.Context, hc *http.Client, method, url string, payload any) (*http.Response, error) {
	if c.auth == nil || c.auth.Expired() {
		return nil, ErrCredentialExpired
	}
	token, err := c.auth.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// SECURITY: Only a fingerprint of the credential is logged.
	c.log.Debug("request", zap.String("method", method), zap.String("url", url),
		zap.String("request_id", requestID), zap.String("credential", auth.Fingerprint(token)))

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("url", url),
			zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.log.Debug("response", zap.Int("status", resp.StatusCode), zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		fe := newFetchError(url, resp, data)
		c.log.Info("backend error", zap.String("url", url), zap.Int("status", fe.Status),
			zap.String("message", fe.Message), zap.String("request_id", requestID))
		return nil, fe
	}
	return resp, nil
}

// doWithRetry retries idempotent requests on 5xx, 429 and network errors
// with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, method, url string, payload any) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt - 1)):
			}
		}

		resp, err := c.do(ctx, c.httpClient, method, url, payload)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		c.log.Debug("retrying", zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, ErrCredentialExpired) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Temporary()
	}
	// Transport-level failure (connection refused, reset).
	return true
}

// calculateBackoff returns the delay before retry number attempt+1:
// 500ms, 1s, 2s, ... capped at retryMaxDelay.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}

// readResponse reads a buffered body with a size limit.
//
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// drain discards and closes a body so the connection can be reused.
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
	resp.Body.Close()
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
