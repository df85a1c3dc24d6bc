package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newStatusMock(t *testing.T) (pgxmock.PgxPoolIface, *StatusStore) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStatusStore(mock, &fakeClock{now: testNow}, zap.NewNop())
}

func TestGetState(t *testing.T) {
	t.Parallel()

	mock, store := newStatusMock(t)
	mock.ExpectQuery("SELECT process_state FROM scraper_status WHERE country ILIKE $1").
		WithArgs("canada").
		WillReturnRows(pgxmock.NewRows([]string{"process_state"}).AddRow("Running"))

	state, err := store.GetState(context.Background(), "canada")
	require.NoError(t, err)
	require.Equal(t, news.StateRunning, state)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetState_MissingCountryIsUnknown(t *testing.T) {
	t.Parallel()

	mock, store := newStatusMock(t)
	mock.ExpectQuery("SELECT process_state FROM scraper_status WHERE country ILIKE $1").
		WithArgs("Atlantis").
		WillReturnRows(pgxmock.NewRows([]string{"process_state"}))

	state, err := store.GetState(context.Background(), "Atlantis")
	require.NoError(t, err)
	require.Equal(t, news.StateUnknown, state)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetState_QueryError(t *testing.T) {
	t.Parallel()

	mock, store := newStatusMock(t)
	mock.ExpectQuery("SELECT process_state FROM scraper_status WHERE country ILIKE $1").
		WithArgs("Canada").
		WillReturnError(errors.New("connection reset"))

	_, err := store.GetState(context.Background(), "Canada")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertState_WithCallCount(t *testing.T) {
	t.Parallel()

	mock, store := newStatusMock(t)
	mock.ExpectExec("INSERT INTO scraper_status (country,process_state,last_updated,proxy_call_count) " +
		"VALUES ($1,$2,$3,$4) ON CONFLICT (country) DO UPDATE SET " +
		"process_state = EXCLUDED.process_state, last_updated = EXCLUDED.last_updated, " +
		"proxy_call_count = EXCLUDED.proxy_call_count").
		WithArgs("Canada", "Completed", testNow, "42").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertState(context.Background(), "Canada", news.StateCompleted, "42"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertState_EmptyCallCountPreservesStored(t *testing.T) {
	t.Parallel()

	mock, store := newStatusMock(t)
	mock.ExpectExec("INSERT INTO scraper_status (country,process_state,last_updated,proxy_call_count) " +
		"VALUES ($1,$2,$3,$4) ON CONFLICT (country) DO UPDATE SET " +
		"process_state = EXCLUDED.process_state, last_updated = EXCLUDED.last_updated").
		WithArgs("Canada", "Running", testNow, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertState(context.Background(), "Canada", news.StateRunning, ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListStates(t *testing.T) {
	t.Parallel()

	mock, store := newStatusMock(t)
	mock.ExpectQuery("SELECT country, process_state, last_updated, proxy_call_count FROM scraper_status ORDER BY country ASC").
		WillReturnRows(pgxmock.NewRows([]string{"country", "process_state", "last_updated", "proxy_call_count"}).
			AddRow("Canada", "Completed", testNow, "42").
			AddRow("USA", "Running", testNow, ""))

	records, err := store.ListStates(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, news.StatusRecord{
		Country:        "Canada",
		State:          news.StateCompleted,
		LastUpdated:    testNow,
		ProxyCallCount: "42",
	}, records[0])
	require.Equal(t, news.StateRunning, records[1].State)
	require.NoError(t, mock.ExpectationsWereMet())
}
