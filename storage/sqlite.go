package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		item_id TEXT NOT NULL,
		query TEXT NOT NULL,
		title TEXT,
		price REAL NOT NULL,
		sold_date DATETIME NOT NULL,
		date_confidence TEXT NOT NULL DEFAULT 'exact',
		seller_id TEXT,
		source_url TEXT,
		image_url TEXT,
		scraped_at DATETIME,
		PRIMARY KEY (query, item_id)
	);

	CREATE TABLE IF NOT EXISTS daily_aggregates (
		query TEXT NOT NULL,
		date DATETIME NOT NULL,
		avg_price REAL,
		min_price REAL,
		max_price REAL,
		total_sales INTEGER,
		unique_sellers JSON,
		PRIMARY KEY (query, date)
	);

	CREATE TABLE IF NOT EXISTS analytics_snapshots (
		query TEXT PRIMARY KEY,
		computed_at DATETIME,
		total_items INTEGER,
		avg_price REAL,
		min_price REAL,
		max_price REAL,
		price_std_dev REAL,
		demand_score REAL,
		market_saturation REAL,
		seller_diversity REAL,
		price_trend_pct REAL,
		volatility_pct REAL,
		seasonal_factor REAL,
		confidence_score REAL
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		query TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		nodes_found INTEGER,
		items_valid INTEGER,
		items_rejected INTEGER,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		query TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_query_date ON items(query, sold_date);
	CREATE INDEX IF NOT EXISTS idx_items_seller ON items(query, seller_id);
	CREATE INDEX IF NOT EXISTS idx_aggregates_query ON daily_aggregates(query, date);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) UpsertItems(ctx context.Context, items []models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (item_id, query, title, price, sold_date, date_confidence,
			seller_id, source_url, image_url, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query, item_id) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			sold_date = excluded.sold_date,
			date_confidence = excluded.date_confidence,
			seller_id = excluded.seller_id,
			source_url = excluded.source_url,
			image_url = excluded.image_url`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.ItemID, it.Query, it.Title, it.Price,
			it.SoldDate.UTC(), it.DateConfidence, it.SellerID, it.SourceURL, it.ImageURL,
			it.ScrapedAt.UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetItemsForDay(ctx context.Context, query string, day time.Time) ([]models.Item, error) {
	start, end := dayBounds(day)
	return s.queryItems(ctx, `
		SELECT item_id, query, title, price, sold_date, date_confidence,
			seller_id, source_url, image_url, scraped_at
		FROM items WHERE query = ? AND sold_date >= ? AND sold_date < ?
		ORDER BY sold_date`, query, start, end)
}

func (s *SQLiteStore) GetItemsSince(ctx context.Context, query string, since time.Time) ([]models.Item, error) {
	return s.queryItems(ctx, `
		SELECT item_id, query, title, price, sold_date, date_confidence,
			seller_id, source_url, image_url, scraped_at
		FROM items WHERE query = ? AND sold_date >= ?
		ORDER BY sold_date`, query, since.UTC())
}

func (s *SQLiteStore) queryItems(ctx context.Context, sqlText string, args ...interface{}) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		var title, seller, sourceURL, imageURL sql.NullString
		if err := rows.Scan(&it.ItemID, &it.Query, &title, &it.Price, &it.SoldDate,
			&it.DateConfidence, &seller, &sourceURL, &imageURL, &it.ScrapedAt); err != nil {
			return nil, err
		}
		it.Title = title.String
		it.SellerID = seller.String
		it.SourceURL = sourceURL.String
		it.ImageURL = imageURL.String
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) CountItems(ctx context.Context, query string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE query = ?`, query).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CountDistinctSellers(ctx context.Context, query string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT seller_id) FROM items
		WHERE query = ? AND seller_id != ?`, query, models.SellerUnknown).Scan(&count)
	return count, err
}

func (s *SQLiteStore) UpsertDailyAggregate(ctx context.Context, agg *models.DailyAggregate) error {
	sellers, err := json.Marshal(agg.UniqueSellers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_aggregates (query, date, avg_price, min_price, max_price, total_sales, unique_sellers)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query, date) DO UPDATE SET
			avg_price = excluded.avg_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			total_sales = excluded.total_sales,
			unique_sellers = excluded.unique_sellers`,
		agg.Query, agg.Date.UTC(), agg.AvgPrice, agg.MinPrice, agg.MaxPrice,
		agg.TotalSales, string(sellers))
	return err
}

func (s *SQLiteStore) GetDailyAggregates(ctx context.Context, query string, since time.Time) ([]models.DailyAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, date, avg_price, min_price, max_price, total_sales, unique_sellers
		FROM daily_aggregates WHERE query = ? AND date >= ?
		ORDER BY date`, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []models.DailyAggregate
	for rows.Next() {
		var a models.DailyAggregate
		var sellers sql.NullString
		if err := rows.Scan(&a.Query, &a.Date, &a.AvgPrice, &a.MinPrice, &a.MaxPrice,
			&a.TotalSales, &sellers); err != nil {
			return nil, err
		}
		if sellers.Valid && sellers.String != "" {
			if err := json.Unmarshal([]byte(sellers.String), &a.UniqueSellers); err != nil {
				return nil, err
			}
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

func (s *SQLiteStore) UpsertSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_snapshots (query, computed_at, total_items, avg_price, min_price,
			max_price, price_std_dev, demand_score, market_saturation, seller_diversity,
			price_trend_pct, volatility_pct, seasonal_factor, confidence_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			computed_at = excluded.computed_at,
			total_items = excluded.total_items,
			avg_price = excluded.avg_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			price_std_dev = excluded.price_std_dev,
			demand_score = excluded.demand_score,
			market_saturation = excluded.market_saturation,
			seller_diversity = excluded.seller_diversity,
			price_trend_pct = excluded.price_trend_pct,
			volatility_pct = excluded.volatility_pct,
			seasonal_factor = excluded.seasonal_factor,
			confidence_score = excluded.confidence_score`,
		snap.Query, snap.ComputedAt.UTC(), snap.TotalItems, snap.AvgPrice, snap.MinPrice,
		snap.MaxPrice, snap.PriceStdDev, snap.DemandScore, snap.MarketSaturation,
		snap.SellerDiversity, snap.PriceTrendPct, snap.VolatilityPct, snap.SeasonalFactor,
		snap.ConfidenceScore)
	return err
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, query string) (*models.AnalyticsSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT query, computed_at, total_items, avg_price, min_price, max_price,
			price_std_dev, demand_score, market_saturation, seller_diversity,
			price_trend_pct, volatility_pct, seasonal_factor, confidence_score
		FROM analytics_snapshots WHERE query = ?`, query)

	var snap models.AnalyticsSnapshot
	err := row.Scan(&snap.Query, &snap.ComputedAt, &snap.TotalItems, &snap.AvgPrice,
		&snap.MinPrice, &snap.MaxPrice, &snap.PriceStdDev, &snap.DemandScore,
		&snap.MarketSaturation, &snap.SellerDiversity, &snap.PriceTrendPct,
		&snap.VolatilityPct, &snap.SeasonalFactor, &snap.ConfidenceScore)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) ListQueries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT query FROM items ORDER BY query`)
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

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (id, query, started_at, status, nodes_found, items_valid, items_rejected)
		VALUES (?, ?, ?, ?, 0, 0, 0)`,
		run.ID.String(), run.Query, run.StartedAt.UTC(), run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs SET finished_at = ?, status = ?, nodes_found = ?,
			items_valid = ?, items_rejected = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.NodesFound, run.ItemsValid, run.ItemsRejected,
		run.ErrorMessage, run.ID.String())
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, query string) error {
	var id interface{}
	if runID != nil {
		id = runID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message, query)
		VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), level, message, query)
	return err
}
