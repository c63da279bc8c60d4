package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSource downloads a policy over HTTP(S).
type HTTPSource struct {
	url      string
	checksum string
	client   *resty.Client
	logger   *slog.Logger
}

// NewHTTPSource creates a remote source. checksum is an optional hex sha256
// digest the downloaded bytes must match.
func NewHTTPSource(rawURL, checksum string, timeout time.Duration, logger *slog.Logger) (*HTTPSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid policy URL %q", rawURL)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("unsupported policy URL scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default().With("component", "policy.source")
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", "intercept")

	return &HTTPSource{
		url:      rawURL,
		checksum: checksum,
		client:   client,
		logger:   logger,
	}, nil
}

// Fetch downloads the document and verifies the checksum.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to download policy: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to download policy: unexpected status %d", resp.StatusCode())
	}

	data := resp.Body()
	if err := verifyChecksum(s.url, data, s.checksum); err != nil {
		return nil, err
	}

	s.logger.Debug("policy downloaded", "url", s.url, "bytes", len(data), "pinned", s.checksum != "")
	return data, nil
}

// Name returns the URL.
func (s *HTTPSource) Name() string {
	return s.url
}
