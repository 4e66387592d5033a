package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/analytics"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/storage"
)

const defaultWindowDays = 90

// Aggregator owns the persist-and-rollup step: it lands validated items in the
// store, rebuilds the daily aggregates their sold dates touch, and recomputes
// the analytics snapshot. Rollups are always re-derived from the full stored
// history of a day, so running the same batch twice is a no-op.
type Aggregator struct {
	store      storage.Store
	engine     *analytics.Engine
	windowDays int
}

func NewAggregator(store storage.Store, engine *analytics.Engine, windowDays int) *Aggregator {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	return &Aggregator{store: store, engine: engine, windowDays: windowDays}
}

// Persist upserts the batch and recomputes the daily aggregate for every day
// the batch touches. Items with an assumed sold date are stored (they still
// count toward all-time totals) but skipped for day bucketing: a guessed date
// in a rollup is worse than no rollup.
func (a *Aggregator) Persist(ctx context.Context, query string, items []models.Item) (*models.AggregateSummary, error) {
	if err := a.store.UpsertItems(ctx, items); err != nil {
		return nil, fmt.Errorf("upsert items: %w", err)
	}

	summary := &models.AggregateSummary{ItemsUpserted: len(items)}

	days := make(map[time.Time]struct{})
	for i := range items {
		if items[i].DateConfidence == models.DateConfidenceAssumed {
			summary.ItemsSkipped++
			continue
		}
		days[items[i].Day()] = struct{}{}
	}

	for day := range days {
		if err := a.recomputeDay(ctx, query, day); err != nil {
			return summary, fmt.Errorf("recompute day %s: %w", day.Format("2006-01-02"), err)
		}
		summary.DaysTouched++
	}
	return summary, nil
}

// recomputeDay rebuilds one (query, day) aggregate from scratch.
func (a *Aggregator) recomputeDay(ctx context.Context, query string, day time.Time) error {
	items, err := a.store.GetItemsForDay(ctx, query, day)
	if err != nil {
		return fmt.Errorf("load day items: %w", err)
	}

	agg := buildDailyAggregate(query, day, items)
	if agg == nil {
		return nil
	}
	return a.store.UpsertDailyAggregate(ctx, agg)
}

// buildDailyAggregate folds a day's items into one rollup row. Assumed-date
// items are excluded; nil means nothing aggregatable landed on that day.
func buildDailyAggregate(query string, day time.Time, items []models.Item) *models.DailyAggregate {
	agg := &models.DailyAggregate{Query: query, Date: day.UTC().Truncate(24 * time.Hour)}

	sellers := make(map[string]struct{})
	var sum float64
	for i := range items {
		it := &items[i]
		if it.DateConfidence == models.DateConfidenceAssumed {
			continue
		}
		if agg.TotalSales == 0 {
			agg.MinPrice = it.Price
			agg.MaxPrice = it.Price
		}
		if it.Price < agg.MinPrice {
			agg.MinPrice = it.Price
		}
		if it.Price > agg.MaxPrice {
			agg.MaxPrice = it.Price
		}
		sum += it.Price
		agg.TotalSales++
		if it.SellerID != "" && it.SellerID != models.SellerUnknown {
			sellers[it.SellerID] = struct{}{}
		}
	}
	if agg.TotalSales == 0 {
		return nil
	}
	agg.AvgPrice = sum / float64(agg.TotalSales)

	agg.UniqueSellers = make([]string, 0, len(sellers))
	for s := range sellers {
		agg.UniqueSellers = append(agg.UniqueSellers, s)
	}
	sort.Strings(agg.UniqueSellers)
	return agg
}

// Recompute rebuilds the analytics snapshot for a query from stored history
// and upserts it. Returns analytics.ErrNoData when the query has no items yet.
func (a *Aggregator) Recompute(ctx context.Context, query string) (*models.AnalyticsSnapshot, error) {
	now := time.Now()
	since := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -a.windowDays)

	aggs, err := a.store.GetDailyAggregates(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	items, err := a.store.GetItemsSince(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	totalItems, err := a.store.CountItems(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	distinctSellers, err := a.store.CountDistinctSellers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count sellers: %w", err)
	}

	report, err := a.engine.Analyze(query, items, aggs, analytics.Totals{
		TotalItems:      totalItems,
		DistinctSellers: distinctSellers,
	}, now)
	if err != nil {
		return nil, err
	}

	snap := report.Snapshot
	if err := a.store.UpsertSnapshot(ctx, &snap); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}

	log.Printf("[aggregator] %q snapshot: %d items, avg $%.2f, trend %+.1f%%, confidence %.2f",
		query, snap.TotalItems, snap.AvgPrice, snap.PriceTrendPct, snap.ConfidenceScore)
	return &snap, nil
}

// Report runs the full analysis for a query without persisting anything.
func (a *Aggregator) Report(ctx context.Context, query string) (*analytics.Report, error) {
	now := time.Now()
	since := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -a.windowDays)

	aggs, err := a.store.GetDailyAggregates(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	items, err := a.store.GetItemsSince(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	totalItems, err := a.store.CountItems(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	distinctSellers, err := a.store.CountDistinctSellers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count sellers: %w", err)
	}

	return a.engine.Analyze(query, items, aggs, analytics.Totals{
		TotalItems:      totalItems,
		DistinctSellers: distinctSellers,
	}, now)
}
