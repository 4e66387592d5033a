package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/analytics"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/services"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/storage"
)

// RecomputeWorker periodically rebuilds the analytics snapshot for every
// tracked query. Snapshots are pure derivations of item history, so this is
// always safe to run: it catches up queries whose pipeline runs degraded
// before the snapshot step.
type RecomputeWorker struct {
	store      storage.Store
	aggregator *services.Aggregator
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewRecomputeWorker(store storage.Store, aggregator *services.Aggregator) *RecomputeWorker {
	return &RecomputeWorker{
		store:      store,
		aggregator: aggregator,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *RecomputeWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *RecomputeWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run loops until the context is cancelled, recomputing on the interval or on
// demand via Trigger.
func (w *RecomputeWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Recompute worker started (every %s)", interval)
	for {
		select {
		case <-ticker.C:
			w.recomputeAll(ctx)
		case <-w.triggerCh:
			w.recomputeAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *RecomputeWorker) recomputeAll(ctx context.Context) {
	queries, err := w.store.ListQueries(ctx)
	if err != nil {
		log.Printf("Recompute: list queries: %v", err)
		return
	}

	var ok, failed int
	for _, query := range queries {
		if _, err := w.aggregator.Recompute(ctx, query); err != nil {
			if errors.Is(err, analytics.ErrNoData) {
				continue
			}
			failed++
			w.logFunc(models.LogLevelWarn, query, fmt.Sprintf("recompute failed: %v", err))
			log.Printf("Recompute %q: %v", query, err)
			continue
		}
		ok++
	}
	if ok > 0 || failed > 0 {
		log.Printf("Recompute: %d snapshots rebuilt, %d failed", ok, failed)
	}
}
