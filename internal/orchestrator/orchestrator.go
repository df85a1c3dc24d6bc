// Package orchestrator periodically dispatches eligible countries onto the
// crawl queue.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/countries"
	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// Orchestrator reads each configured country's processing state and enqueues
// a task for every one not currently running.
type Orchestrator struct {
	countries []string
	states    news.StateStore
	queue     news.Queue
	logger    *zap.Logger
}

// New builds an Orchestrator over the configured country list.
func New(countryList []string, states news.StateStore, queue news.Queue, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		countries: countryList,
		states:    states,
		queue:     queue,
		logger:    logger,
	}
}

// Run dispatches once immediately and then on every tick until the context
// ends.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	o.logger.Info("orchestrator started", zap.Duration("interval", interval))
	o.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return nil
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick runs one dispatch pass. A failure for one country never blocks the
// others.
func (o *Orchestrator) Tick(ctx context.Context) {
	for _, country := range o.countries {
		if err := ctx.Err(); err != nil {
			return
		}
		o.dispatch(ctx, country)
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, country string) {
	log := o.logger.With(zap.String("country", country))

	state, err := o.states.GetState(ctx, country)
	if err != nil {
		log.Error("failed to read country state", zap.Error(err))
		return
	}
	if !eligible(state) {
		log.Info("country busy, skipping dispatch", zap.String("state", string(state)))
		return
	}

	slug := countries.Slug(country)
	if slug == "" {
		log.Warn("country has no slug mapping, skipping")
		return
	}

	task := news.CountryTask{Country: country, CountrySlug: slug}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		log.Error("failed to enqueue country", zap.Error(err))
		return
	}
	log.Info("country dispatched", zap.String("previous_state", string(state)))
}

// eligible reports whether a country in the given state may be dispatched.
// Only a currently running crawl blocks a new one; a failed crawl is
// re-dispatched on the next pass.
func eligible(state news.ProcessState) bool {
	switch state {
	case news.StateInitiate, news.StateCompleted, news.StateFailed, news.StateUnknown:
		return true
	default:
		return false
	}
}
