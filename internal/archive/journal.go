// Package archive keeps a per-country daily journal of scrape activity in
// blob storage, one timestamped line per event.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// Journal buffers journal lines per country and flushes them to blob storage
// on a fixed cadence and on Close. Each country gets one object per UTC day.
type Journal struct {
	store  news.BlobStore
	clock  news.Clock
	logger *zap.Logger

	mu      sync.Mutex
	buffers map[string][]string
}

// New builds a Journal and starts its flush loop, which runs until ctx ends.
func New(ctx context.Context, store news.BlobStore, clock news.Clock, flushEvery time.Duration, logger *zap.Logger) *Journal {
	if flushEvery <= 0 {
		flushEvery = time.Minute
	}
	j := &Journal{
		store:   store,
		clock:   clock,
		logger:  logger,
		buffers: make(map[string][]string),
	}
	go j.flushLoop(ctx, flushEvery)
	return j
}

// Append queues one journal line for the country.
func (j *Journal) Append(country, message string) {
	line := fmt.Sprintf("%s %s", j.clock.Now().Format(time.RFC3339), message)
	j.mu.Lock()
	j.buffers[country] = append(j.buffers[country], line)
	j.mu.Unlock()
}

// Flush writes every buffered line out. Lines that fail to upload are
// re-buffered for the next attempt.
func (j *Journal) Flush(ctx context.Context) {
	j.mu.Lock()
	pending := j.buffers
	j.buffers = make(map[string][]string)
	j.mu.Unlock()

	for country, lines := range pending {
		if len(lines) == 0 {
			continue
		}
		if err := j.upload(ctx, country, lines); err != nil {
			j.logger.Warn("journal flush failed, re-buffering",
				zap.String("country", country),
				zap.Int("lines", len(lines)),
				zap.Error(err),
			)
			j.mu.Lock()
			j.buffers[country] = append(lines, j.buffers[country]...)
			j.mu.Unlock()
		}
	}
}

// Close flushes whatever remains. The flush loop stops with its context.
func (j *Journal) Close(ctx context.Context) {
	j.Flush(ctx)
}

func (j *Journal) flushLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Flush(ctx)
		}
	}
}

func (j *Journal) upload(ctx context.Context, country string, lines []string) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	path := objectPath(country, j.clock.Now())
	uri, err := j.store.PutObject(ctx, path, "text/plain; charset=utf-8", buf.Bytes())
	if err != nil {
		return err
	}
	j.logger.Debug("journal flushed",
		zap.String("country", country),
		zap.Int("lines", len(lines)),
		zap.String("uri", uri),
	)
	return nil
}

// objectPath names the journal object for one country and day. Flushes within
// a day append a time suffix so earlier segments are never overwritten.
func objectPath(country string, now time.Time) string {
	day := now.UTC().Format("2006-01-02")
	seg := now.UTC().Format("150405")
	return fmt.Sprintf("journals/%s/%s/%s.log", sanitize(country), day, seg)
}

func sanitize(country string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(country), " ", "-"))
}
