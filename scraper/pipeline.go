package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/services"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/storage"
)

// Pipeline drives one query through fetch, extract, validate, persist, and
// snapshot recompute. Different queries can run concurrently; runs for the
// same query serialize around the persist+recompute step so the rollup
// rebuild never reads a half-written batch.
type Pipeline struct {
	fetcher    *Fetcher
	store      storage.Store
	aggregator *services.Aggregator

	mu         sync.Mutex
	queryLocks map[string]*sync.Mutex
}

func NewPipeline(fetcher *Fetcher, store storage.Store, aggregator *services.Aggregator) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		store:      store,
		aggregator: aggregator,
		queryLocks: make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) lockFor(query string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.queryLocks[query]
	if !ok {
		lock = &sync.Mutex{}
		p.queryLocks[query] = lock
	}
	return lock
}

// Run executes the full pipeline for one query. Fetch, parse, and validation
// failures return an error with a nil result. Persistence and analytics
// failures degrade instead: scraped items come back to the caller, the run is
// marked degraded, and Summary is nil.
func (p *Pipeline) Run(ctx context.Context, query string) (*models.PipelineResult, error) {
	run := &models.ScrapeRun{
		ID:        uuid.New(),
		Query:     query,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		log.Printf("[pipeline] create run for %q: %v", query, err)
	}

	result, err := p.run(ctx, query, run)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = err.Error()
		p.logRun(ctx, run, models.LogLevelError, err.Error())
	}
	if updateErr := p.store.UpdateRun(ctx, run); updateErr != nil {
		log.Printf("[pipeline] update run %s: %v", run.ID, updateErr)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, query string, run *models.ScrapeRun) (*models.PipelineResult, error) {
	pageHTML, err := p.fetcher.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candidates, nodes, err := Extract(query, pageHTML, now)
	if err != nil {
		return nil, err
	}
	run.NodesFound = nodes
	// One node means only the hidden template rendered: no real listings.
	if nodes <= 1 {
		return nil, ErrEmptyPage
	}

	items, rejected := Validate(candidates, now)
	run.ItemsValid = len(items)
	run.ItemsRejected = rejected + (nodes - 1 - len(candidates))
	if len(items) == 0 {
		return nil, ErrNoResults
	}

	result := &models.PipelineResult{
		RunID:    run.ID,
		Query:    query,
		Items:    items,
		Rejected: run.ItemsRejected,
	}

	lock := p.lockFor(query)
	lock.Lock()
	defer lock.Unlock()

	run.Status = models.RunStatusCompleted
	if _, err := p.aggregator.Persist(ctx, query, items); err != nil {
		perr := &PersistenceError{Op: "persist batch", Err: err}
		log.Printf("[pipeline] %q: %v", query, perr)
		p.logRun(ctx, run, models.LogLevelWarn, perr.Error())
		run.Status = models.RunStatusDegraded
		return result, nil
	}

	summary, err := p.aggregator.Recompute(ctx, query)
	if err != nil {
		log.Printf("[pipeline] %q: recompute snapshot: %v", query, err)
		p.logRun(ctx, run, models.LogLevelWarn, fmt.Sprintf("recompute snapshot: %v", err))
		run.Status = models.RunStatusDegraded
		return result, nil
	}
	result.Summary = summary

	p.logRun(ctx, run, models.LogLevelInfo,
		fmt.Sprintf("scraped %d items (%d rejected) from %d nodes", len(items), result.Rejected, nodes))
	return result, nil
}

func (p *Pipeline) logRun(ctx context.Context, run *models.ScrapeRun, level models.LogLevel, message string) {
	if err := p.store.Log(ctx, &run.ID, level, message, run.Query); err != nil {
		log.Printf("[pipeline] store log: %v", err)
	}
}
