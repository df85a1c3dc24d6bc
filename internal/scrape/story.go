package scrape

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/metrics"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

func newTopicID() string {
	return uuid.NewString()
}

// saveTopic fetches the story page in the country's localized edition, takes
// the first coverage article as the topic preview, and persists the topic
// record. A topic is registered even when no preview article qualifies.
func (s *Scraper) saveTopic(
	ctx context.Context,
	topicID, storyURL string,
	item news.CategoryItem,
	task news.CountryTask,
	proxy string,
	calls *news.CallCounter,
	log *zap.Logger,
) {
	now := s.clock.Now()
	rec := news.TopicRecord{
		ID:        topicID,
		Category:  item.Name,
		Country:   task.CountrySlug,
		City:      task.CountrySlug,
		NativeURL: storyURL,
		Created:   now,
		Modified:  now,
	}

	title, image := s.storyPreview(ctx, storyURL, task, proxy, calls, log)
	rec.Title = title
	rec.ImageURL = image

	if err := s.records.UpsertTopic(ctx, rec); err != nil {
		metrics.ObserveUpsert("topic", "error")
		log.Error("topic upsert failed", zap.Error(err))
		return
	}
	metrics.ObserveUpsert("topic", "ok")
}

// storyPreview extracts the title and image of the first linked coverage
// article on the story page. Both are best-effort; the topic survives without
// them.
func (s *Scraper) storyPreview(
	ctx context.Context,
	storyURL string,
	task news.CountryTask,
	proxy string,
	calls *news.CallCounter,
	log *zap.Logger,
) (title, image string) {
	html, err := s.fetchTimed(ctx, "story", news.FetchRequest{
		URL:     storyURL,
		Proxy:   proxy,
		Country: task.Country,
		Params:  localeParams(task.CountrySlug),
		Calls:   calls,
	})
	if err != nil {
		log.Warn("story preview fetch failed", zap.Error(err))
		return "", ""
	}
	pg, err := parsePage(html)
	if err != nil {
		log.Warn("story preview parse failed", zap.Error(err))
		return "", ""
	}

	arts := pg.coverageArticles(headingLabels)
	if arts == nil {
		return "", ""
	}
	for i := 0; i < arts.Length(); i++ {
		art := arts.Eq(i)
		if articleURL(art) == "" {
			continue
		}
		return articleTitle(art), articleImage(art, s.cfg.BaseURL)
	}
	return "", ""
}

// parseStory walks every article in the story's top-coverage block and
// upserts the ones carrying a valid link and modification time. An article
// already stored is rewritten only when the incoming modification time is
// strictly newer than the stored record's creation time.
func (s *Scraper) parseStory(
	ctx context.Context,
	topicID, storyURL string,
	item news.CategoryItem,
	task news.CountryTask,
	proxy string,
	calls *news.CallCounter,
	log *zap.Logger,
) {
	html, err := s.fetchTimed(ctx, "story", news.FetchRequest{
		URL:     storyURL,
		Proxy:   proxy,
		Country: task.Country,
		Params:  localeParams(task.CountrySlug),
		Calls:   calls,
	})
	if err != nil {
		log.Warn("story fetch failed", zap.Error(err))
		return
	}
	pg, err := parsePage(html)
	if err != nil {
		log.Warn("story parse failed", zap.Error(err))
		return
	}

	arts := pg.coverageArticles(headingLabels)
	if arts == nil {
		log.Info("story has no coverage block")
		return
	}

	for i := 0; i < arts.Length(); i++ {
		art := arts.Eq(i)

		href := articleURL(art)
		if href == "" {
			log.Warn("article without link, skipping")
			continue
		}
		newsURL := resolveURL(s.cfg.BaseURL, href)

		modified, rawModified, ok := articleModified(art)
		if !ok {
			log.Warn("article without parseable modification time, skipping",
				zap.String("url", newsURL),
				zap.String("raw", rawModified),
			)
			continue
		}

		existing, err := s.records.FindArticleByURL(ctx, newsURL)
		if err != nil {
			// Treat a failed lookup as "not stored" and let the write decide.
			log.Error("article lookup failed", zap.String("url", newsURL), zap.Error(err))
			existing = nil
		}
		if existing != nil && !modified.After(existing.Created) {
			log.Debug("article up to date, skipping", zap.String("url", newsURL))
			continue
		}

		rec := news.ArticleRecord{
			TopicID:         topicID,
			Title:           articleTitle(art),
			Category:        item.Name,
			Provider:        articleProvider(art),
			ProviderLogoURL: articleProviderLogo(art),
			Text:            rawModified,
			Country:         task.CountrySlug,
			City:            task.CountrySlug,
			NativeURL:       newsURL,
			URL:             newsURL,
			ImageURL:        articleImage(art, s.cfg.BaseURL),
			Created:         s.clock.Now(),
			Modified:        modified,
		}
		if err := s.records.UpsertArticle(ctx, rec); err != nil {
			metrics.ObserveUpsert("article", "error")
			log.Error("article upsert failed", zap.String("url", newsURL), zap.Error(err))
			continue
		}
		metrics.ObserveUpsert("article", "ok")
	}
}
