package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "Valdi/1.0"

// errTooLarge marks a recording above the configured ceiling.
var errTooLarge = errors.New("recording exceeds size limit")

// terminalError stops the retry loop; the wrapped error is returned as is.
type terminalError struct{ err error }

func (e terminalError) Error() string { return e.err.Error() }
func (e terminalError) Unwrap() error { return e.err }

// DownloadRequest describes one recording fetch.
type DownloadRequest struct {
	URL         string
	BearerToken string
}

// HTTPDownloader fetches provider recordings with a per-attempt timeout and a size ceiling.
type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
}

// NewHTTPDownloader creates a downloader. A nil client uses a default one.
func NewHTTPDownloader(client *http.Client, maxBytes int64, timeout time.Duration) *HTTPDownloader {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDownloader{client: client, maxBytes: maxBytes, timeout: timeout}
}

// Download performs a single attempt. Client errors other than 408 and 429 are terminal.
func (d *HTTPDownloader) Download(ctx context.Context, req DownloadRequest) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, terminalError{fmt.Errorf("invalid recording url: %w", err)}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("recording request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("recording download returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return nil, terminalError{statusErr}
		}
		return nil, statusErr
	}

	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return nil, terminalError{errTooLarge}
	}

	reader := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording body: %w", err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, terminalError{errTooLarge}
	}
	if len(data) == 0 {
		return nil, errors.New("recording body is empty")
	}
	return data, nil
}

// withRetry runs fn up to attempts times with quadratic backoff (base * n^2).
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var terminal terminalError
		if errors.As(lastErr, &terminal) {
			return terminal.err
		}
		if attempt == attempts {
			break
		}
		wait := base * time.Duration(attempt*attempt)
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}
