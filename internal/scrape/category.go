package scrape

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// scrapeCategory fetches one category page and fans the story clusters it
// links out to a bounded worker group. Story failures are logged and
// swallowed; the category is best-effort.
func (s *Scraper) scrapeCategory(
	ctx context.Context,
	item news.CategoryItem,
	task news.CountryTask,
	proxy string,
	calls *news.CallCounter,
	log *zap.Logger,
) {
	catLog := log.With(zap.String("category", item.Name))
	catLog.Info("scraping category", zap.String("url", item.ResolvedURL))

	html, err := s.fetchTimed(ctx, "category", news.FetchRequest{
		URL:     item.ResolvedURL,
		Proxy:   proxy,
		Country: task.Country,
		Calls:   calls,
	})
	if err != nil {
		catLog.Warn("category fetch failed", zap.Error(err))
		return
	}
	pg, err := parsePage(html)
	if err != nil {
		catLog.Warn("category parse failed", zap.Error(err))
		return
	}

	links := pg.storyLinks()
	if len(links) == 0 {
		catLog.Info("no story links in category")
		return
	}
	catLog.Info("story links found", zap.Int("count", len(links)))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.StoryConcurrency)
	for _, link := range links {
		link := link
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					catLog.Error("story processing panicked",
						zap.Any("panic", r),
						zap.String("markup", link.markup),
					)
				}
			}()
			s.processStory(groupCtx, link, item, task, proxy, calls, catLog)
			return nil
		})
	}
	// Workers never return errors; Wait only drains the group.
	_ = group.Wait()
}

// processStory resolves one story link, records its topic, and parses its
// coverage page.
func (s *Scraper) processStory(
	ctx context.Context,
	link storyLink,
	item news.CategoryItem,
	task news.CountryTask,
	proxy string,
	calls *news.CallCounter,
	log *zap.Logger,
) {
	if link.href == "" || !strings.HasPrefix(link.href, "./") {
		log.Warn("skipping story with invalid link", zap.String("href", link.href))
		return
	}
	storyURL := resolveURL(s.cfg.BaseURL, link.href)
	topicID := s.newID()

	storyLog := log.With(
		zap.String("topic_id", topicID),
		zap.String("story_url", storyURL),
	)

	s.saveTopic(ctx, topicID, storyURL, item, task, proxy, calls, storyLog)
	s.parseStory(ctx, topicID, storyURL, item, task, proxy, calls, storyLog)
}
