package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/storage"
)

// ExportWorker publishes the latest snapshot and day series for every tracked
// query to S3-compatible storage. Export is best-effort: a failed query is
// logged and skipped, never retried within the same pass.
type ExportWorker struct {
	store      storage.Store
	exporter   *storage.SnapshotExporter
	windowDays int
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewExportWorker(store storage.Store, exporter *storage.SnapshotExporter, windowDays int) *ExportWorker {
	if windowDays <= 0 {
		windowDays = 90
	}
	return &ExportWorker{
		store:      store,
		exporter:   exporter,
		windowDays: windowDays,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *ExportWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *ExportWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Export worker started (every %s)", interval)
	for {
		select {
		case <-ticker.C:
			w.exportAll(ctx)
		case <-w.triggerCh:
			w.exportAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *ExportWorker) exportAll(ctx context.Context) {
	queries, err := w.store.ListQueries(ctx)
	if err != nil {
		log.Printf("Export: list queries: %v", err)
		return
	}

	exported := 0
	for _, query := range queries {
		if err := w.exportQuery(ctx, query); err != nil {
			w.logFunc(models.LogLevelWarn, query, fmt.Sprintf("export failed: %v", err))
			log.Printf("Export %q: %v", query, err)
			continue
		}
		exported++
	}
	if exported > 0 {
		log.Printf("Export: published %d queries", exported)
	}
}

func (w *ExportWorker) exportQuery(ctx context.Context, query string) error {
	snap, err := w.store.GetSnapshot(ctx, query)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil // nothing computed yet
	}
	if err := w.exporter.ExportSnapshot(ctx, snap); err != nil {
		return err
	}

	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -w.windowDays)
	aggs, err := w.store.GetDailyAggregates(ctx, query, since)
	if err != nil {
		return fmt.Errorf("load aggregates: %w", err)
	}
	if len(aggs) == 0 {
		return nil
	}
	return w.exporter.ExportAggregates(ctx, query, aggs)
}
