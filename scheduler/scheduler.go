package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/config"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/scraper"
)

// Runner executes one scrape for a query.
type Runner interface {
	Run(ctx context.Context, query string) (*models.PipelineResult, error)
}

// SnapshotSource serves the last computed snapshot when a run times out.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, query string) (*models.AnalyticsSnapshot, error)
}

// Triggerable allows workers to be kicked outside their own timers.
type Triggerable interface {
	Trigger()
}

// Scheduler drives the watchlist: every query runs on the global cron or
// interval, unless it carries its own cron override.
type Scheduler struct {
	cfg       *config.Config
	pipeline  Runner
	snapshots SnapshotSource
	cron      *cron.Cron
	ticker    *time.Ticker
	stopCh    chan struct{}

	exportWorker Triggerable
}

func New(cfg *config.Config, pipeline Runner, snapshots SnapshotSource) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		pipeline:  pipeline,
		snapshots: snapshots,
		cron:      cron.New(),
		stopCh:    make(chan struct{}),
	}
}

// SetExportWorker registers the export worker so a completed sweep can push
// fresh snapshots out immediately instead of waiting for the export timer.
func (s *Scheduler) SetExportWorker(w Triggerable) {
	s.exportWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	var defaultQueries []config.WatchQuery
	for _, wq := range s.cfg.Watchlist.Queries {
		if wq.Cron == "" {
			defaultQueries = append(defaultQueries, wq)
			continue
		}
		wq := wq
		_, err := s.cron.AddFunc(wq.Cron, func() {
			s.runQuery(ctx, wq.Query)
		})
		if err != nil {
			return fmt.Errorf("invalid cron %q for query %q: %w", wq.Cron, wq.Query, err)
		}
		log.Printf("Scheduled %q with cron: %s", wq.Query, wq.Cron)
	}

	switch {
	case s.cfg.Scheduler.Cron != "":
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runSweep(ctx, defaultQueries)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	case s.cfg.Scheduler.Interval > 0:
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runSweep(ctx, defaultQueries)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	default:
		log.Println("No schedule configured, daemon will only run per-query crons")
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// runSweep runs every default-schedule query sequentially, then triggers an
// export so the published snapshots match what was just scraped.
func (s *Scheduler) runSweep(ctx context.Context, queries []config.WatchQuery) {
	for _, wq := range queries {
		s.runQuery(ctx, wq.Query)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if s.exportWorker != nil {
		s.exportWorker.Trigger()
	}
}

// runQuery runs one scheduled scrape under the per-run deadline. A run that
// exceeds the deadline falls back to the stored snapshot rather than leaving
// the sweep with nothing.
func (s *Scheduler) runQuery(ctx context.Context, query string) {
	runCtx := ctx
	if s.cfg.Scheduler.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Scheduler.RunTimeout)
		defer cancel()
	}

	result, err := s.pipeline.Run(runCtx, query)
	if err != nil {
		var blocked *scraper.BlockedError
		switch {
		case errors.As(err, &blocked):
			log.Printf("Scheduled run for %q blocked: %v", query, err)
		case errors.Is(err, context.DeadlineExceeded):
			s.fallbackToSnapshot(ctx, query)
		default:
			log.Printf("Scheduled run error for %q: %v", query, err)
		}
		return
	}
	log.Printf("Scheduled run for %q: %d items", query, len(result.Items))
}

func (s *Scheduler) fallbackToSnapshot(ctx context.Context, query string) {
	snap, err := s.snapshots.GetSnapshot(ctx, query)
	if err != nil || snap == nil {
		log.Printf("Run for %q exceeded %s; no stored snapshot to fall back on",
			query, s.cfg.Scheduler.RunTimeout)
		return
	}
	log.Printf("Run for %q exceeded %s; keeping snapshot computed at %s",
		query, s.cfg.Scheduler.RunTimeout, snap.ComputedAt.Format(time.RFC3339))
}

// TriggerNow runs the whole watchlist immediately.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.runSweep(ctx, s.cfg.Watchlist.Queries)
}
