package news

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across subsystems.
var (
	// ErrNotFound is returned by stores when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrNoProxy means the country slug maps to no proxy endpoint; the crawl
	// cannot fetch anything and fails before the first request.
	ErrNoProxy = errors.New("no proxy endpoint for country")
	// ErrHomeUnavailable means the localized home page could not be retrieved.
	// The crawl is marked Failed but the message is not redelivered.
	ErrHomeUnavailable = errors.New("home page unavailable")
)

// StateStore persists one processing-state record per country.
type StateStore interface {
	// GetState matches the country case-insensitively and returns StateUnknown
	// when no record exists.
	GetState(ctx context.Context, country string) (ProcessState, error)
	// UpsertState always sets the state and last-updated timestamp. The proxy
	// call count is written only when non-empty; an empty value preserves the
	// stored one.
	UpsertState(ctx context.Context, country string, state ProcessState, proxyCallCount string) error
	// ListStates returns every status record, for operator surfaces.
	ListStates(ctx context.Context) ([]StatusRecord, error)
}

// RecordStore owns read-modify-write of topic and article records. No other
// component mutates them.
type RecordStore interface {
	FindArticleByURL(ctx context.Context, nativeURL string) (*StoredRecord, error)
	UpsertTopic(ctx context.Context, rec TopicRecord) error
	UpsertArticle(ctx context.Context, rec ArticleRecord) error
}

// Fetcher retrieves a page through the given proxy and returns raw HTML.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}

// Renderer produces DOM for pages that need JavaScript execution. Used as an
// optional fallback when the static home page carries no navigation menu.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Queue provides enqueue/dequeue semantics for country tasks.
type Queue interface {
	Enqueue(ctx context.Context, task CountryTask) error
	Dequeue(ctx context.Context) (Delivery, error)
}

// Delivery is one leased queue message. The lease must be renewed for as long
// as processing runs; Ack settles the message, Nack hands it back to the
// queue's retry/dead-letter policy, Release drops the lease handle.
type Delivery interface {
	Body() []byte
	Renew(ctx context.Context) error
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
	Release()
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// CountryScraper executes the multi-stage scrape for one country.
type CountryScraper interface {
	ScrapeCountry(ctx context.Context, task CountryTask, calls *CallCounter) error
}
