package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/pkg/logger"
)

const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxBytes      = 50 << 20
	DefaultMaxRedirects  = 5
	DefaultFetchRetries  = 2
	defaultRetryBackoff  = 250 * time.Millisecond
	defaultUserAgent     = "docqa/1.0"
	maxRetryBackoffFetch = 5 * time.Second
)

// FetchConfig controls downloads.
type FetchConfig struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	Retries      int
	RetryBackoff time.Duration
	UserAgent    string
}

// Fetcher downloads documents over HTTP.
type Fetcher struct {
	cfg    FetchConfig
	client *http.Client
}

// statusError is a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, http.StatusText(e.code))
}

func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	maxRedirects := cfg.MaxRedirects
	client := &http.Client{Timeout: cfg.Timeout}
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return ErrMaxRedirectsExceeded
		}
		return nil
	}
	return &Fetcher{cfg: cfg, client: client}
}

// Fetch downloads rawURL, retrying network failures and 5xx responses.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("url", core.RedactURL(rawURL))
	backoff := retry.WithMaxRetries(
		uint64(f.cfg.Retries), // #nosec G115 -- non-negative by construction
		retry.WithCappedDuration(maxRetryBackoffFetch, retry.NewExponential(f.cfg.RetryBackoff)),
	)
	var download *Download
	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		d, err := f.fetchOnce(ctx, rawURL)
		if err != nil {
			if ctx.Err() == nil && isRetryableFetch(err) {
				log.Warn("Document download failed, retrying", "error", core.RedactError(err))
				return retry.RetryableError(err)
			}
			return err
		}
		download = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	log.Debug("Document downloaded",
		"bytes", len(download.Data),
		"content_type", download.ContentType,
		"duration_seconds", time.Since(start).Seconds(),
	)
	return download, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}
	data, err := io.ReadAll(&io.LimitedReader{R: resp.Body, N: f.cfg.MaxBytes + 1})
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}
	return &Download{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid document url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrUnsupportedScheme
	}
	if u.Host == "" {
		return errors.New("document url has no host")
	}
	return nil
}

func isRetryableFetch(err error) bool {
	if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrMaxRedirectsExceeded) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= 500 || status.code == http.StatusTooManyRequests
	}
	return true
}
