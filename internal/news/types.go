// Package news defines core types shared across subsystems.
package news

import (
	"net/url"
	"time"
)

// ProcessState represents the lifecycle state of a country's crawl.
type ProcessState string

// Process state values persisted in the scraper status store. StateUnknown is
// never written; it is what a read reports for a country that has no record yet.
const (
	StateInitiate  ProcessState = "Initiate"
	StateRunning   ProcessState = "Running"
	StateCompleted ProcessState = "Completed"
	StateFailed    ProcessState = "Failed"
	StateUnknown   ProcessState = "unknown"
)

// CountryTask is the queue message payload that triggers one crawl.
type CountryTask struct {
	Country     string `json:"Country"`
	CountrySlug string `json:"CountrySlug"`
}

// Valid reports whether both message fields are present. An invalid task is
// dropped without retry.
func (t CountryTask) Valid() bool {
	return t.Country != "" && t.CountrySlug != ""
}

// StatusRecord is one row of the scraper status collection.
type StatusRecord struct {
	Country        string       `json:"country"`
	State          ProcessState `json:"process_state"`
	LastUpdated    time.Time    `json:"last_updated"`
	ProxyCallCount string       `json:"proxy_call_count,omitempty"`
}

// CategoryItem is a resolved home-page menu entry. Transient, never persisted.
type CategoryItem struct {
	Name        string
	SourcePath  string
	ResolvedURL string
}

// TopicRecord is persisted once per discovered story cluster. It exists
// independently of its child articles so a cluster with no qualifying article
// still registers.
type TopicRecord struct {
	ID        string
	Title     string
	Category  string
	Country   string
	City      string
	NativeURL string
	ImageURL  string
	Created   time.Time
	Modified  time.Time
}

// ArticleRecord is one representative article inside a topic's top-coverage
// block, uniquely identified by NativeURL within the country's collection.
type ArticleRecord struct {
	TopicID         string
	Title           string
	Category        string
	Provider        string
	ProviderLogoURL string
	Text            string
	Country         string
	City            string
	NativeURL       string
	URL             string
	ImageURL        string
	Created         time.Time
	Modified        time.Time
	Meta            string
}

// StoredRecord is the subset of a persisted topic/article row needed for the
// dedup decision.
type StoredRecord struct {
	ID        string
	NativeURL string
	Created   time.Time
	Modified  time.Time
}

// FetchRequest captures everything needed to fetch one page through a proxy.
type FetchRequest struct {
	URL     string
	Proxy   string
	Country string
	Params  url.Values
	Calls   *CallCounter
}
