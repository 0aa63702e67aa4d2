package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultMediaTimeout  = 30 * time.Second
	DefaultMediaMaxBytes = 10 << 20
)

// ErrMediaTooLarge is returned when a download exceeds the size cap.
var ErrMediaTooLarge = errors.New("media exceeds size limit")

// Downloader fetches media referenced by upstream results.
type Downloader struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewDownloader returns a downloader. Zero values fall back to the 30s and
// 10MB defaults; a nil client uses http.DefaultClient.
func NewDownloader(client *http.Client, timeout time.Duration, maxBytes int64) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultMediaTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMediaMaxBytes
	}
	return &Downloader{client: client, timeout: timeout, maxBytes: maxBytes}
}

// Download GETs url once. Only 2xx responses are accepted.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("media: build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media: get %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("media: %d bytes: %w", resp.ContentLength, ErrMediaTooLarge)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", url, err)
	}
	if int64(len(body)) > d.maxBytes {
		return nil, fmt.Errorf("media: more than %d bytes: %w", d.maxBytes, ErrMediaTooLarge)
	}
	return body, nil
}
