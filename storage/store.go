package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// Store is the persistence surface the pipeline and workers run against.
// SQLite backs local/dev deployments, Postgres the hosted one; both satisfy
// this interface and are picked at startup from config.
type Store interface {
	// Items. Upserts are keyed on (query, item_id) and commutative: replaying
	// the same batch leaves the table unchanged.
	UpsertItems(ctx context.Context, items []models.Item) error
	GetItemsForDay(ctx context.Context, query string, day time.Time) ([]models.Item, error)
	GetItemsSince(ctx context.Context, query string, since time.Time) ([]models.Item, error)
	CountItems(ctx context.Context, query string) (int, error)
	CountDistinctSellers(ctx context.Context, query string) (int, error)

	// Daily rollups, one row per (query, date).
	UpsertDailyAggregate(ctx context.Context, agg *models.DailyAggregate) error
	GetDailyAggregates(ctx context.Context, query string, since time.Time) ([]models.DailyAggregate, error)

	// Latest snapshot per query, superseded on every recompute.
	UpsertSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error
	GetSnapshot(ctx context.Context, query string) (*models.AnalyticsSnapshot, error)

	// ListQueries returns every query that has stored items, for the
	// periodic recompute worker.
	ListQueries(ctx context.Context) ([]string, error)

	// Run bookkeeping.
	CreateRun(ctx context.Context, run *models.ScrapeRun) error
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error
	Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, query string) error

	Close() error
}

// dayBounds returns the UTC half-open interval [start, end) covering the
// calendar day of t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := t.UTC().Truncate(24 * time.Hour)
	return start, start.AddDate(0, 0, 1)
}
