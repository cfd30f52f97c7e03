package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpalmerr/lettersync/internal/csrf"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; the sync loop talks to a single origin
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // matches common ALB defaults
)

// CSRFHeader is the request header carrying the page's anti-forgery token.
const CSRFHeader = csrf.HeaderName

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport-level error.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// StatusUpdate is one (letter number, status) pair reported by the server.
type StatusUpdate struct {
	LetterNumber string `json:"letter_number"`
	Status       string `json:"status"`
}

type statusRequest struct {
	LetterNumbers []string `json:"letter_numbers"`
}

// Client is an HTTP client wrapper for the status endpoint.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new [Client] with a pooled transport.
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. A nil body sends no request body.
// Fetch always returns a Response; errors are captured in the Error field.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       respBody,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// CheckStatus asks the status endpoint for the current status of keys.
//
// The request is a JSON POST of {"letter_numbers": keys} carrying the CSRF
// token in the X-CSRFToken header. Any transport error, non-2xx status or
// undecodable body is returned as an error; no partial result is returned.
// A null body or an entry without a letter number or status counts as
// undecodable.
func (c *Client) CheckStatus(ctx context.Context, url string, keys []string, csrfToken string, timeout time.Duration) ([]StatusUpdate, error) {
	payload, err := json.Marshal(statusRequest{LetterNumbers: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		CSRFHeader:     csrfToken,
	}

	resp := c.Fetch(ctx, http.MethodPost, url, headers, payload, timeout)
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return decodeStatusUpdates(resp.Body)
}

// decodeStatusUpdates parses a status response. The body must be a JSON
// array and every entry must carry both a letter number and a status.
func decodeStatusUpdates(body []byte) ([]StatusUpdate, error) {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, errors.New("failed to decode response: expected a JSON array, got null")
	}

	var updates []StatusUpdate
	if err := json.Unmarshal(body, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	for i, u := range updates {
		if u.LetterNumber == "" || u.Status == "" {
			return nil, fmt.Errorf("failed to decode response: entry %d is missing letter_number or status", i)
		}
	}
	return updates, nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times and on a nil client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
