package models

import "time"

// DailyAggregate is the per-day rollup for one query. There is exactly one row
// per (query, date); it is recomputed from full item history, never patched.
type DailyAggregate struct {
	Query         string    `json:"query" db:"query"`
	Date          time.Time `json:"date" db:"date"` // calendar day, UTC midnight
	AvgPrice      float64   `json:"avg_price" db:"avg_price"`
	MinPrice      float64   `json:"min_price" db:"min_price"`
	MaxPrice      float64   `json:"max_price" db:"max_price"`
	TotalSales    int       `json:"total_sales" db:"total_sales"`
	UniqueSellers []string  `json:"unique_sellers" db:"unique_sellers"` // sorted set
}

// AggregateSummary reports what a persist pass touched.
type AggregateSummary struct {
	ItemsUpserted int `json:"items_upserted"`
	ItemsSkipped  int `json:"items_skipped"` // assumed-date items left out of rollups
	DaysTouched   int `json:"days_touched"`
}
