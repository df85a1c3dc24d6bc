package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

const statusTable = "scraper_status"

// StatusStore implements news.StateStore on PostgreSQL.
type StatusStore struct {
	db     DB
	clock  news.Clock
	logger *zap.Logger
}

// NewStatusStore builds a StatusStore.
func NewStatusStore(db DB, clock news.Clock, logger *zap.Logger) *StatusStore {
	return &StatusStore{db: db, clock: clock, logger: logger}
}

// GetState returns the stored processing state for the country, matching the
// name case-insensitively. A country with no record reports StateUnknown.
func (s *StatusStore) GetState(ctx context.Context, country string) (news.ProcessState, error) {
	query, args, err := psql.
		Select("process_state").
		From(statusTable).
		Where("country ILIKE ?", country).
		ToSql()
	if err != nil {
		return news.StateUnknown, fmt.Errorf("build state query: %w", err)
	}

	var state string
	err = s.db.QueryRow(ctx, query, args...).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.StateUnknown, nil
	}
	if err != nil {
		return news.StateUnknown, fmt.Errorf("query state for %q: %w", country, err)
	}
	return news.ProcessState(state), nil
}

// UpsertState writes the state and last-updated timestamp for the country,
// inserting the row on first sight. The proxy call count column is touched
// only when the value is non-empty.
func (s *StatusStore) UpsertState(ctx context.Context, country string, state news.ProcessState, proxyCallCount string) error {
	now := s.clock.Now()

	builder := psql.
		Insert(statusTable).
		Columns("country", "process_state", "last_updated", "proxy_call_count").
		Values(country, string(state), now, proxyCallCount)
	suffix := "ON CONFLICT (country) DO UPDATE SET process_state = EXCLUDED.process_state, last_updated = EXCLUDED.last_updated"
	if proxyCallCount != "" {
		suffix += ", proxy_call_count = EXCLUDED.proxy_call_count"
	}
	query, args, err := builder.Suffix(suffix).ToSql()
	if err != nil {
		return fmt.Errorf("build state upsert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert state for %q: %w", country, err)
	}
	s.logger.Debug("state updated",
		zap.String("country", country),
		zap.String("state", string(state)),
	)
	return nil
}

// ListStates returns every status row ordered by country name.
func (s *StatusStore) ListStates(ctx context.Context) ([]news.StatusRecord, error) {
	query, args, err := psql.
		Select("country", "process_state", "last_updated", "proxy_call_count").
		From(statusTable).
		OrderBy("country ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build states query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var records []news.StatusRecord
	for rows.Next() {
		var rec news.StatusRecord
		var state string
		if err := rows.Scan(&rec.Country, &state, &rec.LastUpdated, &rec.ProxyCallCount); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		rec.State = news.ProcessState(state)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}
	return records, nil
}
