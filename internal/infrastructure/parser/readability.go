package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxPageBytes = 5 << 20

// ReadabilityExtractor pulls article text with go-readability.
type ReadabilityExtractor struct {
	client    *http.Client
	userAgent string
}

var _ Extractor = (*ReadabilityExtractor)(nil)

// NewReadabilityExtractor builds an extractor with a per-page timeout.
func NewReadabilityExtractor(timeout time.Duration, userAgent string) *ReadabilityExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReadabilityExtractor{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// Extract downloads pageURL and returns its readable text. Cancelling ctx
// aborts the download.
func (r *ReadabilityExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url %s: %w", pageURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return "", fmt.Errorf("readability %s: %w", pageURL, err)
	}
	return CollapseSpace(article.TextContent), nil
}
