// Package collyfetcher implements news.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/metrics"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// fixedHeaders is the header set sent with every request. The target site
// serves different markup to clients without a browser-like header set.
var fixedHeaders = map[string]string{
	"accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp," +
		"image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"accept-language": "en-US,en;q=0.9",
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements news.Fetcher using the Colly collector. Each fetch runs
// on a clone of the base collector so the per-country proxy can differ per
// request without shared state.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET through the request's proxy and returns
// the raw HTML body. Every attempt, successful or not, counts against the
// invocation's proxy call counter.
func (f *Fetcher) Fetch(ctx context.Context, req news.FetchRequest) (string, error) {
	if req.Calls != nil {
		req.Calls.Inc()
	}

	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		metrics.ObserveProxyRequest(req.Country, "error")
		return "", fmt.Errorf("build fetch url: %w", err)
	}

	collector, err := f.buildCollector(req)
	if err != nil {
		metrics.ObserveProxyRequest(req.Country, "error")
		return "", err
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	start := time.Now()
	if err := f.runCollector(ctx, collector, target); err != nil {
		metrics.ObserveProxyRequest(req.Country, "error")
		return "", err
	}
	if fetchErr != nil {
		metrics.ObserveProxyRequest(req.Country, "error")
		return "", fmt.Errorf("fetch %s: %w", target, fetchErr)
	}

	metrics.ObserveProxyRequest(req.Country, "ok")
	f.logger.Debug("page fetched",
		zap.String("url", target),
		zap.String("country", req.Country),
		zap.Duration("duration", time.Since(start)),
	)
	return string(body), nil
}

func (f *Fetcher) buildCollector(req news.FetchRequest) (*colly.Collector, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	transport, err := newProxyTransport(req.Proxy)
	if err != nil {
		return nil, err
	}
	collector.WithTransport(transport)

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range fixedHeaders {
			r.Headers.Set(key, value)
		}
	})
	return collector, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newProxyTransport(proxyURL string) (*http.Transport, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}
	return transport, nil
}

func buildURL(raw string, params url.Values) (string, error) {
	if len(params) == 0 {
		return raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for key, values := range params {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
