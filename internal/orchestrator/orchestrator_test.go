package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

type fakeStates struct {
	states map[string]news.ProcessState
	err    error
}

func (s *fakeStates) GetState(_ context.Context, country string) (news.ProcessState, error) {
	if s.err != nil {
		return news.StateUnknown, s.err
	}
	if state, ok := s.states[country]; ok {
		return state, nil
	}
	return news.StateUnknown, nil
}

func (s *fakeStates) UpsertState(_ context.Context, _ string, _ news.ProcessState, _ string) error {
	return nil
}

func (s *fakeStates) ListStates(_ context.Context) ([]news.StatusRecord, error) {
	return nil, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []news.CountryTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task news.CountryTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) Dequeue(_ context.Context) (news.Delivery, error) {
	return nil, errors.New("not used")
}

func (q *fakeQueue) enqueued() []news.CountryTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]news.CountryTask(nil), q.tasks...)
}

func TestTick_DispatchesEligibleCountries(t *testing.T) {
	t.Parallel()

	states := &fakeStates{states: map[string]news.ProcessState{
		"Canada": news.StateCompleted,
		"USA":    news.StateRunning,
		"UK":     news.StateFailed,
	}}
	queue := &fakeQueue{}
	o := New([]string{"Canada", "USA", "UK"}, states, queue, zap.NewNop())

	o.Tick(context.Background())

	tasks := queue.enqueued()
	require.Len(t, tasks, 2)
	require.Equal(t, news.CountryTask{Country: "Canada", CountrySlug: "CA"}, tasks[0])
	require.Equal(t, news.CountryTask{Country: "UK", CountrySlug: "GB"}, tasks[1])
}

func TestTick_UnknownStateDispatches(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	o := New([]string{"USA"}, &fakeStates{}, queue, zap.NewNop())

	o.Tick(context.Background())

	tasks := queue.enqueued()
	require.Len(t, tasks, 1)
	require.Equal(t, "US", tasks[0].CountrySlug)
}

func TestTick_UnmappedCountrySkipped(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	o := New([]string{"Atlantis"}, &fakeStates{}, queue, zap.NewNop())

	o.Tick(context.Background())
	require.Empty(t, queue.enqueued())
}

func TestTick_StateReadFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	// Every read fails; the pass must still visit every country without
	// panicking or aborting.
	states := &fakeStates{err: errors.New("db offline")}
	queue := &fakeQueue{}
	o := New([]string{"Canada", "USA"}, states, queue, zap.NewNop())

	o.Tick(context.Background())
	require.Empty(t, queue.enqueued())
}

func TestTick_EnqueueFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{err: errors.New("queue offline")}
	o := New([]string{"Canada", "USA"}, &fakeStates{}, queue, zap.NewNop())

	// Must not panic; both countries attempted.
	o.Tick(context.Background())
	require.Empty(t, queue.enqueued())
}

func TestEligible(t *testing.T) {
	t.Parallel()

	require.True(t, eligible(news.StateInitiate))
	require.True(t, eligible(news.StateCompleted))
	require.True(t, eligible(news.StateFailed))
	require.True(t, eligible(news.StateUnknown))
	require.False(t, eligible(news.StateRunning))
}

func TestTick_CanceledContextStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	queue := &fakeQueue{}
	o := New([]string{"Canada"}, &fakeStates{}, queue, zap.NewNop())

	o.Tick(ctx)
	require.Empty(t, queue.enqueued())
}
