// Package worker consumes country tasks from the queue and drives the crawl
// pipeline, owning the processing-state transitions around each run.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/metrics"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// leaseRenewInterval is how often the message lease is extended while a crawl
// runs. Must stay well under the lease deadline the queue grants.
const leaseRenewInterval = 30 * time.Second

// Journal receives human-readable progress lines for the daily scrape log.
// May be a no-op when archiving is disabled.
type Journal interface {
	Append(country, message string)
}

// Worker runs the dequeue-scrape-settle loop.
type Worker struct {
	queue   news.Queue
	states  news.StateStore
	scraper news.CountryScraper
	journal Journal
	logger  *zap.Logger

	renewInterval time.Duration
}

// New builds a Worker. journal may be nil.
func New(queue news.Queue, states news.StateStore, scraper news.CountryScraper, journal Journal, logger *zap.Logger) *Worker {
	return &Worker{
		queue:         queue,
		states:        states,
		scraper:       scraper,
		journal:       journal,
		logger:        logger,
		renewInterval: leaseRenewInterval,
	}
}

// Run blocks pulling tasks until the context is canceled. Tasks are processed
// one at a time; concurrency lives inside the pipeline, not across countries.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping", zap.Error(err))
			return nil
		}
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		w.processDelivery(ctx, delivery)
	}
}

// processDelivery handles one leased message end to end.
//
// Settlement policy: a malformed message is logged and acked without touching
// any country's state. A crawl that fails before its first page (no proxy) or
// on the home page marks the country Failed and acks; redelivery would hit
// the same wall. Any other failure marks Failed and nacks so the queue's
// retry policy decides.
func (w *Worker) processDelivery(ctx context.Context, delivery news.Delivery) {
	invocationID := uuid.NewString()
	log := w.logger.With(zap.String("invocation_id", invocationID))

	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	renewCtx, stopRenewal := context.WithCancel(ctx)
	defer stopRenewal()
	go w.renewLease(renewCtx, delivery, log)
	defer delivery.Release()

	var task news.CountryTask
	if err := json.Unmarshal(delivery.Body(), &task); err != nil || !task.Valid() {
		log.Error("invalid queue message, dropping",
			zap.ByteString("body", delivery.Body()),
			zap.Error(err),
		)
		metrics.ObserveJob("invalid")
		w.ack(ctx, delivery, log)
		return
	}
	log = log.With(zap.String("country", task.Country))
	w.journalLine(task.Country, "scrape started, invocation %s", invocationID)

	if err := w.states.UpsertState(ctx, task.Country, news.StateRunning, ""); err != nil {
		log.Error("failed to mark country running", zap.Error(err))
	}

	var calls news.CallCounter
	start := time.Now()
	err := w.scraper.ScrapeCountry(ctx, task, &calls)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		w.setState(ctx, task.Country, news.StateCompleted, calls.String(), log)
		metrics.ObserveJob("completed")
		w.journalLine(task.Country, "scrape completed in %s, %s proxy calls", elapsed.Round(time.Second), calls.String())
		log.Info("scrape completed",
			zap.Duration("elapsed", elapsed),
			zap.Int64("proxy_calls", calls.Value()),
		)
		w.ack(ctx, delivery, log)

	case errors.Is(err, news.ErrNoProxy), errors.Is(err, news.ErrHomeUnavailable):
		w.setState(ctx, task.Country, news.StateFailed, calls.String(), log)
		metrics.ObserveJob("failed")
		w.journalLine(task.Country, "scrape failed terminally: %v", err)
		log.Error("scrape failed, not retrying", zap.Error(err))
		w.ack(ctx, delivery, log)

	default:
		w.setState(ctx, task.Country, news.StateFailed, calls.String(), log)
		metrics.ObserveJob("retried")
		w.journalLine(task.Country, "scrape failed, returned for retry: %v", err)
		log.Error("scrape failed, returning message to queue", zap.Error(err))
		if nackErr := delivery.Nack(ctx); nackErr != nil {
			log.Error("failed to nack message", zap.Error(nackErr))
		}
	}
}

// renewLease extends the message lease on a fixed cadence until processing
// finishes or the context ends.
func (w *Worker) renewLease(ctx context.Context, delivery news.Delivery, log *zap.Logger) {
	ticker := time.NewTicker(w.renewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := delivery.Renew(ctx); err != nil {
				metrics.ObserveLeaseRenewal("error")
				log.Warn("lease renewal failed", zap.Error(err))
				continue
			}
			metrics.ObserveLeaseRenewal("ok")
		}
	}
}

func (w *Worker) setState(ctx context.Context, country string, state news.ProcessState, calls string, log *zap.Logger) {
	if err := w.states.UpsertState(ctx, country, state, calls); err != nil {
		log.Error("failed to record terminal state",
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
}

func (w *Worker) ack(ctx context.Context, delivery news.Delivery, log *zap.Logger) {
	if err := delivery.Ack(ctx); err != nil {
		log.Error("failed to ack message", zap.Error(err))
	}
}

func (w *Worker) journalLine(country, format string, args ...any) {
	if w.journal == nil {
		return
	}
	w.journal.Append(country, fmt.Sprintf(format, args...))
}
