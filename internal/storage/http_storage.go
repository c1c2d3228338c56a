package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

const maxFetchAttempts = 3

// HTTPImageFetcher implements ImageFetcher over HTTP(S) with retries
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. A zero timeout or
// size cap selects the defaults.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	// Transport tuned for single image downloads
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		backoff:  time.Second,
	}
}

// FetchImage downloads ref. Transport errors and 5xx responses are retried
// with linear backoff; other non-200 responses fail immediately.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, ref string) (*RawImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "paimai-ubi/1.0")

	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode == http.StatusOK {
			defer resp.Body.Close()

			data, err := readLimited(resp.Body, h.maxBytes)
			if err != nil {
				return nil, err
			}
			return &RawImage{
				Data:        data,
				ContentType: sniffContentType(resp.Header.Get("Content-Type"), data),
				Source:      ref,
			}, nil
		} else {
			resp.Body.Close()

			if resp.StatusCode < 500 {
				// 4xx and unexpected statuses are not retryable
				if resp.StatusCode >= 400 {
					lastErr = fmt.Errorf("client error: status code %d", resp.StatusCode)
				} else {
					lastErr = fmt.Errorf("unexpected status code %d", resp.StatusCode)
				}
				break
			}
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}

		if attempt < maxFetchAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to fetch image: %w", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * h.backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", maxFetchAttempts, lastErr)
}
