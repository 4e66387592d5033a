package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		item_id TEXT NOT NULL,
		query TEXT NOT NULL,
		title TEXT,
		price DOUBLE PRECISION NOT NULL,
		sold_date TIMESTAMPTZ NOT NULL,
		date_confidence TEXT NOT NULL DEFAULT 'exact',
		seller_id TEXT,
		source_url TEXT,
		image_url TEXT,
		scraped_at TIMESTAMPTZ,
		PRIMARY KEY (query, item_id)
	);

	CREATE TABLE IF NOT EXISTS daily_aggregates (
		query TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		avg_price DOUBLE PRECISION,
		min_price DOUBLE PRECISION,
		max_price DOUBLE PRECISION,
		total_sales INTEGER,
		unique_sellers JSONB,
		PRIMARY KEY (query, date)
	);

	CREATE TABLE IF NOT EXISTS analytics_snapshots (
		query TEXT PRIMARY KEY,
		computed_at TIMESTAMPTZ,
		total_items INTEGER,
		avg_price DOUBLE PRECISION,
		min_price DOUBLE PRECISION,
		max_price DOUBLE PRECISION,
		price_std_dev DOUBLE PRECISION,
		demand_score DOUBLE PRECISION,
		market_saturation DOUBLE PRECISION,
		seller_diversity DOUBLE PRECISION,
		price_trend_pct DOUBLE PRECISION,
		volatility_pct DOUBLE PRECISION,
		seasonal_factor DOUBLE PRECISION,
		confidence_score DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id UUID PRIMARY KEY,
		query TEXT,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		nodes_found INTEGER,
		items_valid INTEGER,
		items_rejected INTEGER,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID,
		timestamp TIMESTAMPTZ,
		level TEXT,
		message TEXT,
		query TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_query_date ON items(query, sold_date);
	CREATE INDEX IF NOT EXISTS idx_aggregates_query ON daily_aggregates(query, date);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) UpsertItems(ctx context.Context, items []models.Item) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO items (item_id, query, title, price, sold_date, date_confidence,
			seller_id, source_url, image_url, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (query, item_id) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			sold_date = EXCLUDED.sold_date,
			date_confidence = EXCLUDED.date_confidence,
			seller_id = EXCLUDED.seller_id,
			source_url = EXCLUDED.source_url,
			image_url = EXCLUDED.image_url`

	for _, it := range items {
		if _, err := tx.Exec(ctx, query, it.ItemID, it.Query, it.Title, it.Price,
			it.SoldDate.UTC(), it.DateConfidence, it.SellerID, it.SourceURL, it.ImageURL,
			it.ScrapedAt.UTC()); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const itemColumns = `item_id, query, title, price, sold_date, date_confidence,
	seller_id, source_url, image_url, scraped_at`

func (s *PostgresStore) GetItemsForDay(ctx context.Context, query string, day time.Time) ([]models.Item, error) {
	start, end := dayBounds(day)
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE query = $1 AND sold_date >= $2 AND sold_date < $3
		ORDER BY sold_date`, query, start, end)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (s *PostgresStore) GetItemsSince(ctx context.Context, query string, since time.Time) ([]models.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE query = $1 AND sold_date >= $2
		ORDER BY sold_date`, query, since.UTC())
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func scanItems(rows pgx.Rows) ([]models.Item, error) {
	defer rows.Close()
	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ItemID, &it.Query, &it.Title, &it.Price, &it.SoldDate,
			&it.DateConfidence, &it.SellerID, &it.SourceURL, &it.ImageURL, &it.ScrapedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CountItems(ctx context.Context, query string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM items WHERE query = $1`, query).Scan(&count)
	return count, err
}

func (s *PostgresStore) CountDistinctSellers(ctx context.Context, query string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT seller_id) FROM items
		WHERE query = $1 AND seller_id != $2`, query, models.SellerUnknown).Scan(&count)
	return count, err
}

func (s *PostgresStore) UpsertDailyAggregate(ctx context.Context, agg *models.DailyAggregate) error {
	sellers, err := json.Marshal(agg.UniqueSellers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_aggregates (query, date, avg_price, min_price, max_price, total_sales, unique_sellers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (query, date) DO UPDATE SET
			avg_price = EXCLUDED.avg_price,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			total_sales = EXCLUDED.total_sales,
			unique_sellers = EXCLUDED.unique_sellers`,
		agg.Query, agg.Date.UTC(), agg.AvgPrice, agg.MinPrice, agg.MaxPrice,
		agg.TotalSales, sellers)
	return err
}

func (s *PostgresStore) GetDailyAggregates(ctx context.Context, query string, since time.Time) ([]models.DailyAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT query, date, avg_price, min_price, max_price, total_sales, unique_sellers
		FROM daily_aggregates WHERE query = $1 AND date >= $2
		ORDER BY date`, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []models.DailyAggregate
	for rows.Next() {
		var a models.DailyAggregate
		var sellers []byte
		if err := rows.Scan(&a.Query, &a.Date, &a.AvgPrice, &a.MinPrice, &a.MaxPrice,
			&a.TotalSales, &sellers); err != nil {
			return nil, err
		}
		if len(sellers) > 0 {
			if err := json.Unmarshal(sellers, &a.UniqueSellers); err != nil {
				return nil, err
			}
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

func (s *PostgresStore) UpsertSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analytics_snapshots (query, computed_at, total_items, avg_price, min_price,
			max_price, price_std_dev, demand_score, market_saturation, seller_diversity,
			price_trend_pct, volatility_pct, seasonal_factor, confidence_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (query) DO UPDATE SET
			computed_at = EXCLUDED.computed_at,
			total_items = EXCLUDED.total_items,
			avg_price = EXCLUDED.avg_price,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			price_std_dev = EXCLUDED.price_std_dev,
			demand_score = EXCLUDED.demand_score,
			market_saturation = EXCLUDED.market_saturation,
			seller_diversity = EXCLUDED.seller_diversity,
			price_trend_pct = EXCLUDED.price_trend_pct,
			volatility_pct = EXCLUDED.volatility_pct,
			seasonal_factor = EXCLUDED.seasonal_factor,
			confidence_score = EXCLUDED.confidence_score`,
		snap.Query, snap.ComputedAt.UTC(), snap.TotalItems, snap.AvgPrice, snap.MinPrice,
		snap.MaxPrice, snap.PriceStdDev, snap.DemandScore, snap.MarketSaturation,
		snap.SellerDiversity, snap.PriceTrendPct, snap.VolatilityPct, snap.SeasonalFactor,
		snap.ConfidenceScore)
	return err
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, query string) (*models.AnalyticsSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT query, computed_at, total_items, avg_price, min_price, max_price,
			price_std_dev, demand_score, market_saturation, seller_diversity,
			price_trend_pct, volatility_pct, seasonal_factor, confidence_score
		FROM analytics_snapshots WHERE query = $1`, query)

	var snap models.AnalyticsSnapshot
	err := row.Scan(&snap.Query, &snap.ComputedAt, &snap.TotalItems, &snap.AvgPrice,
		&snap.MinPrice, &snap.MaxPrice, &snap.PriceStdDev, &snap.DemandScore,
		&snap.MarketSaturation, &snap.SellerDiversity, &snap.PriceTrendPct,
		&snap.VolatilityPct, &snap.SeasonalFactor, &snap.ConfidenceScore)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresStore) ListQueries(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT query FROM items ORDER BY query`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_runs (id, query, started_at, status, nodes_found, items_valid, items_rejected)
		VALUES ($1, $2, $3, $4, 0, 0, 0)`,
		run.ID, run.Query, run.StartedAt.UTC(), run.Status)
	return err
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET finished_at = $2, status = $3, nodes_found = $4,
			items_valid = $5, items_rejected = $6, error_message = $7
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.Status, run.NodesFound, run.ItemsValid,
		run.ItemsRejected, run.ErrorMessage)
	return err
}

func (s *PostgresStore) Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, query string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message, query)
		VALUES ($1, $2, $3, $4, $5)`,
		runID, time.Now().UTC(), level, message, query)
	return err
}
