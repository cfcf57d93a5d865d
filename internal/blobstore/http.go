package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStore fetches remote blobs over HTTP GET with a browser-like user
// agent and the tiered backoff policy of spec §4.1: three attempts total,
// exponential 5/10/20s backoff on 429, short fixed 1/2/4s backoff on 5xx,
// immediate failure on any other 4xx.
type HTTPStore struct {
	client    *http.Client
	userAgent string
}

// NewHTTPStore constructs an HTTPStore using client (or http.DefaultClient
// if nil).
func NewHTTPStore(client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{
		client:    client,
		userAgent: "Mozilla/5.0 (compatible; docpipeline/1.0; +https://example.invalid/bot)",
	}
}

var rateLimitBackoff = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
var serverErrorBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

func (h *HTTPStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	const maxAttempts = 3
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		body, status, err := h.attempt(ctx, uri)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if status == http.StatusTooManyRequests {
			if !sleep(ctx, rateLimitBackoff, attempt) {
				return nil, ctx.Err()
			}
			continue
		}
		if status >= 500 {
			if !sleep(ctx, serverErrorBackoff, attempt) {
				return nil, ctx.Err()
			}
			continue
		}
		// Any other 4xx (or a transport error without a status) fails
		// immediately without retry.
		return nil, lastErr
	}
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", uri, maxAttempts, lastErr)
}

func (h *HTTPStore) attempt(ctx context.Context, uri string) ([]byte, int, error) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if resp.StatusCode/100 != 2 {
		return nil, resp.StatusCode, fmt.Errorf("fetch %s: unexpected status %s", uri, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func sleep(ctx context.Context, schedule []time.Duration, attempt int) bool {
	if attempt >= len(schedule) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(schedule[attempt]):
		return true
	}
}
