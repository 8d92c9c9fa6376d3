// Package fetch retrieves a company homepage and reduces it to bounded plain text.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/config"
	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/resilience"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// WithRetry enables retries of transient fetch failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(f *Fetcher) {
		f.retry = cfg
	}
}

// Fetcher downloads a homepage over HTTPS, falling back to HTTP when the
// HTTPS connection cannot be established.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxChars     int
	maxBodyBytes int64
	retry        resilience.RetryConfig
}

// New creates a Fetcher from fetch settings.
func New(cfg config.FetchConfig, opts ...Option) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:    cfg.UserAgent,
		maxChars:     cfg.MaxChars,
		maxBodyBytes: cfg.MaxBodyBytes,
		retry:        resilience.NoRetry(),
	}
	if f.userAgent == "" {
		f.userAgent = config.DefaultUserAgent
	}
	if f.maxBodyBytes <= 0 {
		f.maxBodyBytes = 2 << 20
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// connError marks a failure to obtain any HTTP response at all.
type connError struct {
	err error
}

func (e *connError) Error() string { return e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

// Fetch returns the visible text of https://<domain>/. Unreachable hosts,
// non-2xx statuses and pages without text yield a fetch_error.
func (f *Fetcher) Fetch(ctx context.Context, domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", model.NewStageError(model.KindFetch, eris.New("fetch: empty domain"))
	}

	cfg := f.retry
	cfg.OnRetry = resilience.RetryLogger("fetch", domain)

	text, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return f.fetchWithFallback(ctx, domain)
	})
	if err != nil {
		return "", model.NewStageError(model.KindFetch, err)
	}
	return text, nil
}

func (f *Fetcher) fetchWithFallback(ctx context.Context, domain string) (string, error) {
	text, err := f.get(ctx, "https://"+domain+"/")
	if err == nil {
		return text, nil
	}

	var ce *connError
	if !errors.As(err, &ce) || ctx.Err() != nil {
		return "", err
	}

	zap.L().Debug("fetch: https failed, trying http",
		zap.String("domain", domain),
		zap.Error(err),
	)
	return f.get(ctx, "http://"+domain+"/")
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &connError{err: eris.Wrapf(err, "fetch: get %s", target)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrapf(err, "fetch: read body %s", target), 0)
	}

	block := DetectBlock(resp.StatusCode, resp.Header, body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("fetch: %s returned status %d", target, resp.StatusCode)
		if block != BlockNone {
			statusErr = eris.Errorf("fetch: %s returned status %d (blocked: %s)", target, resp.StatusCode, block)
		}
		return "", resilience.MarkStatus(statusErr, resp.StatusCode)
	}

	if block != BlockNone {
		zap.L().Warn("fetch: page looks like an anti-bot shell",
			zap.String("url", target),
			zap.String("block_type", string(block)),
		)
	}

	text, err := ExtractText(bytes.NewReader(body), resp.Header.Get("Content-Type"), f.maxChars)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", eris.Errorf("fetch: %s: no text content", target)
	}

	zap.L().Debug("fetch: page text extracted",
		zap.String("url", resp.Request.URL.String()),
		zap.Int("bytes", len(body)),
		zap.Int("chars", len([]rune(text))),
	)
	return text, nil
}
