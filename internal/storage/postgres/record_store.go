package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// RecordStore implements news.RecordStore on PostgreSQL. The topic and
// article table names are configurable so staging and production crawls can
// share a database.
type RecordStore struct {
	db           DB
	topicTable   string
	articleTable string
	logger       *zap.Logger
}

// NewRecordStore builds a RecordStore.
func NewRecordStore(db DB, topicTable, articleTable string, logger *zap.Logger) *RecordStore {
	if topicTable == "" {
		topicTable = "news_topics"
	}
	if articleTable == "" {
		articleTable = "news_articles"
	}
	return &RecordStore{
		db:           db,
		topicTable:   topicTable,
		articleTable: articleTable,
		logger:       logger,
	}
}

// FindArticleByURL looks up a stored article by its native URL. A missing
// article is (nil, nil), not an error.
func (s *RecordStore) FindArticleByURL(ctx context.Context, nativeURL string) (*news.StoredRecord, error) {
	query, args, err := psql.
		Select("id", "native_url", "created", "modified").
		From(s.articleTable).
		Where(squirrel.Eq{"native_url": nativeURL}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article lookup: %w", err)
	}

	var rec news.StoredRecord
	err = s.db.QueryRow(ctx, query, args...).Scan(&rec.ID, &rec.NativeURL, &rec.Created, &rec.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup article %q: %w", nativeURL, err)
	}
	return &rec, nil
}

// UpsertTopic inserts a topic record, or refreshes the mutable fields of the
// stored row keyed by native URL. Created and native_url never change after
// the first write, and the update applies only when the incoming modified
// time is strictly newer than the stored row's created time, the same
// staleness rule the article upsert uses.
func (s *RecordStore) UpsertTopic(ctx context.Context, rec news.TopicRecord) error {
	query, args, err := psql.
		Insert(s.topicTable).
		Columns("id", "title", "category", "country", "city", "native_url", "image_url", "created", "modified").
		Values(rec.ID, rec.Title, rec.Category, rec.Country, rec.City, rec.NativeURL, rec.ImageURL, rec.Created, rec.Modified).
		Suffix("ON CONFLICT (native_url) DO UPDATE SET " +
			"title = EXCLUDED.title, category = EXCLUDED.category, " +
			"image_url = EXCLUDED.image_url, modified = EXCLUDED.modified " +
			"WHERE EXCLUDED.modified > " + s.topicTable + ".created").
		ToSql()
	if err != nil {
		return fmt.Errorf("build topic upsert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert topic %q: %w", rec.NativeURL, err)
	}
	s.logger.Debug("topic stored", zap.String("id", rec.ID), zap.String("url", rec.NativeURL))
	return nil
}

// UpsertArticle inserts an article record, or refreshes the mutable fields of
// the stored row keyed by native URL. Created and native_url never change
// after the first write. The update applies only when the incoming modified
// time is strictly newer than the stored row's created time, so the write is
// safe under concurrent deliveries of the same URL. The comparison baseline
// is created, not modified; downstream consumers depend on that behavior.
func (s *RecordStore) UpsertArticle(ctx context.Context, rec news.ArticleRecord) error {
	query, args, err := psql.
		Insert(s.articleTable).
		Columns("topic_id", "title", "category", "provider", "provider_logo_url", "text",
			"country", "city", "native_url", "url", "image_url", "created", "modified", "meta").
		Values(rec.TopicID, rec.Title, rec.Category, rec.Provider, rec.ProviderLogoURL, rec.Text,
			rec.Country, rec.City, rec.NativeURL, rec.URL, rec.ImageURL, rec.Created, rec.Modified, rec.Meta).
		Suffix("ON CONFLICT (native_url) DO UPDATE SET " +
			"topic_id = EXCLUDED.topic_id, title = EXCLUDED.title, category = EXCLUDED.category, " +
			"provider = EXCLUDED.provider, provider_logo_url = EXCLUDED.provider_logo_url, " +
			"text = EXCLUDED.text, image_url = EXCLUDED.image_url, " +
			"modified = EXCLUDED.modified, meta = EXCLUDED.meta " +
			"WHERE EXCLUDED.modified > " + s.articleTable + ".created").
		ToSql()
	if err != nil {
		return fmt.Errorf("build article upsert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article %q: %w", rec.NativeURL, err)
	}
	s.logger.Debug("article stored", zap.String("url", rec.NativeURL))
	return nil
}
