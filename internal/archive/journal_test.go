package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.objects[path] = append([]byte(nil), data...)
	return fmt.Sprintf("gs://test/%s", path), nil
}

func (s *fakeBlobStore) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p := range s.objects {
		out = append(out, p)
	}
	return out
}

var journalNow = time.Date(2026, 8, 28, 14, 30, 45, 0, time.UTC)

func newTestJournal(t *testing.T, store *fakeBlobStore) *Journal {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	// A long flush interval keeps the loop out of the way; tests flush by hand.
	return New(ctx, store, &fakeClock{now: journalNow}, time.Hour, zap.NewNop())
}

func TestJournal_FlushWritesPerCountryObjects(t *testing.T) {
	t.Parallel()

	store := newFakeBlobStore()
	j := newTestJournal(t, store)

	j.Append("Canada", "scrape started")
	j.Append("Canada", "scrape completed")
	j.Append("USA", "scrape started")
	j.Flush(context.Background())

	paths := store.paths()
	require.Len(t, paths, 2)

	canada := store.objects["journals/canada/2026-08-28/143045.log"]
	require.NotNil(t, canada)
	lines := strings.Split(strings.TrimSpace(string(canada)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "scrape started")
	require.Contains(t, lines[0], journalNow.Format(time.RFC3339))
	require.Contains(t, lines[1], "scrape completed")
}

func TestJournal_FlushWithoutLinesWritesNothing(t *testing.T) {
	t.Parallel()

	store := newFakeBlobStore()
	j := newTestJournal(t, store)

	j.Flush(context.Background())
	require.Empty(t, store.paths())
}

func TestJournal_FailedFlushRebuffers(t *testing.T) {
	t.Parallel()

	store := newFakeBlobStore()
	store.err = errors.New("bucket offline")
	j := newTestJournal(t, store)

	j.Append("Canada", "scrape started")
	j.Flush(context.Background())
	require.Empty(t, store.paths())

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	j.Flush(context.Background())
	require.Len(t, store.paths(), 1)
}

func TestJournal_CloseFlushes(t *testing.T) {
	t.Parallel()

	store := newFakeBlobStore()
	j := newTestJournal(t, store)

	j.Append("UK", "scrape failed terminally")
	j.Close(context.Background())
	require.Len(t, store.paths(), 1)
}

func TestObjectPath(t *testing.T) {
	t.Parallel()

	path := objectPath("New Zealand", journalNow)
	require.Equal(t, "journals/new-zealand/2026-08-28/143045.log", path)
}
