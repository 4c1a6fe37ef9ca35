// Package fetch implements HTTP page retrieval with retry and
// browser-profile rotation.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/metrics"
)

// Profile is a browser identity presented to the target site. Attempts
// rotate through the configured profiles so a retry does not replay the
// fingerprint that was just refused.
type Profile struct {
	UserAgent string
	Headers   http.Header
}

// DefaultProfiles cover the common desktop browsers plus a mobile one.
var DefaultProfiles = []Profile{
	{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Headers: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
			"Accept-Language": {"uk-UA,uk;q=0.9,ru;q=0.8,en;q=0.7"},
		},
	},
	{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		Headers: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"uk,ru;q=0.8,en-US;q=0.5"},
		},
	},
	{
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		Headers: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"uk-UA,uk;q=0.9,en;q=0.6"},
		},
	},
}

// Config controls collector behavior.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	Profiles    []Profile
}

// Client implements listing.Fetcher using the Colly collector.
type Client struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Client. Zero config fields fall back to sane defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := newHTTPTransport()
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(transport)

	return &Client{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch retrieves the page body, retrying transient failures with an
// increasing backoff. A 404 or 410 from the site is terminal and maps to
// listing.ErrNotFound so callers can deactivate the record instead of
// retrying forever.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.TotalFetchRetries.Inc()
			if err := sleepWithContext(ctx, c.cfg.BaseBackoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
		metrics.TotalFetches.Inc()

		profile := c.cfg.Profiles[attempt%len(c.cfg.Profiles)]
		body, status, err := c.do(ctx, url, profile)
		if err == nil {
			return body, nil
		}
		if status == http.StatusNotFound || status == http.StatusGone {
			return nil, listing.ErrNotFound
		}
		lastErr = err
		c.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.Error(err))
	}
	metrics.TotalFetchErrors.Inc()
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) do(ctx context.Context, url string, profile Profile) ([]byte, int, error) {
	collector := c.baseCollector.Clone()
	collector.UserAgent = profile.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(c.transport)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range profile.Headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, status, fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, status, fmt.Errorf("response failed: %w", fetchErr)
		}
		return body, status, nil
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
