// Package scrape implements the four-stage crawl pipeline for one country:
// home discovery, category resolution, category parsing, and story/article
// parsing. Each stage is fault-isolated; a failure in one category or story
// never aborts its siblings.
package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/countries"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/metrics"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// headingLabels are the synonymous section titles that mark a story page's
// top-coverage block, in priority order. The first heading whose sibling
// block contains article nodes wins.
var headingLabels = []string{"Top news", "All coverage", "Top News"}

// Config controls pipeline behavior.
type Config struct {
	BaseURL          string
	ProxyUsername    string
	ProxyPassword    string
	StoryConcurrency int
}

// Scraper runs the crawl pipeline for one country task at a time. Instances
// are safe for concurrent use across tasks; per-invocation state (the proxy
// call counter) travels with the call.
type Scraper struct {
	cfg      Config
	fetcher  news.Fetcher
	renderer news.Renderer
	records  news.RecordStore
	clock    news.Clock
	logger   *zap.Logger
	proxyFor func(slug string) string
	newID    func() string
}

// New constructs a Scraper. The renderer may be nil when headless fallback is
// disabled.
func New(
	cfg Config,
	fetcher news.Fetcher,
	renderer news.Renderer,
	records news.RecordStore,
	clock news.Clock,
	logger *zap.Logger,
) *Scraper {
	if cfg.StoryConcurrency <= 0 {
		cfg.StoryConcurrency = 16
	}
	return &Scraper{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: renderer,
		records:  records,
		clock:    clock,
		logger:   logger,
		proxyFor: func(slug string) string {
			return countries.ProxyEndpoint(slug, cfg.ProxyUsername, cfg.ProxyPassword)
		},
		newID: newTopicID,
	}
}

// ScrapeCountry executes the pipeline for one task. It returns
// news.ErrNoProxy before any fetch when the slug resolves to no endpoint,
// news.ErrHomeUnavailable when the localized home page cannot be retrieved,
// and nil otherwise. An empty menu also returns nil: that is "nothing to
// do", not a failure.
func (s *Scraper) ScrapeCountry(ctx context.Context, task news.CountryTask, calls *news.CallCounter) error {
	slug := task.CountrySlug
	if slug == "" {
		return fmt.Errorf("%w: empty slug for %q", news.ErrNoProxy, task.Country)
	}
	proxy := s.proxyFor(slug)
	if proxy == "" {
		return fmt.Errorf("%w: unknown slug %q", news.ErrNoProxy, slug)
	}

	log := s.logger.With(zap.String("country", task.Country), zap.String("slug", slug))

	homeURL := fmt.Sprintf("%s/home?gl=%s&hl=en-%s&ceid=%s:en", s.cfg.BaseURL, slug, slug, slug)
	log.Info("fetching home page", zap.String("url", homeURL))

	html, err := s.fetchTimed(ctx, "home", news.FetchRequest{
		URL:     homeURL,
		Proxy:   proxy,
		Country: task.Country,
		Calls:   calls,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", news.ErrHomeUnavailable, err)
	}
	pg, err := parsePage(html)
	if err != nil {
		return fmt.Errorf("%w: parse home: %v", news.ErrHomeUnavailable, err)
	}

	entries := pg.menuEntries()
	if len(entries) == 0 && s.renderer != nil {
		entries = s.renderedMenuEntries(ctx, homeURL, log)
	}
	if len(entries) == 0 {
		log.Info("no menu items found, nothing to crawl")
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl canceled: %w", err)
		}
		if entry.link == "" || !strings.HasPrefix(entry.link, "./") {
			log.Warn("invalid or empty menu link",
				zap.String("category", entry.title),
				zap.String("link", entry.link),
			)
			continue
		}
		item := news.CategoryItem{
			Name:        entry.title,
			SourcePath:  entry.link,
			ResolvedURL: resolveURL(s.cfg.BaseURL, entry.link),
		}
		s.scrapeCategory(ctx, item, task, proxy, calls, log)
	}
	return nil
}

// renderedMenuEntries retries home discovery through the headless renderer.
// Some locales serve the home page as a script shell; the static markup then
// carries no menu at all.
func (s *Scraper) renderedMenuEntries(ctx context.Context, homeURL string, log *zap.Logger) []menuEntry {
	html, err := s.renderer.Render(ctx, homeURL)
	if err != nil {
		log.Warn("headless home render failed", zap.Error(err))
		return nil
	}
	pg, err := parsePage(html)
	if err != nil {
		log.Warn("headless home parse failed", zap.Error(err))
		return nil
	}
	return pg.menuEntries()
}

// fetchTimed wraps a fetch with the per-stage latency histogram.
func (s *Scraper) fetchTimed(ctx context.Context, stage string, req news.FetchRequest) (string, error) {
	start := time.Now()
	html, err := s.fetcher.Fetch(ctx, req)
	metrics.ObserveFetch(stage, time.Since(start))
	return html, err
}

// localeParams builds the query parameters the story pages need to serve the
// country's localized edition.
func localeParams(slug string) url.Values {
	return url.Values{
		"hl":   []string{"en-" + slug},
		"gl":   []string{slug},
		"ceid": []string{slug + ":en"},
	}
}
