package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsSnapshot is the single latest computed summary for a query. It is
// an upsert target, not a log: every successful recompute supersedes it, and
// it is always rebuildable from the item history alone.
type AnalyticsSnapshot struct {
	Query            string    `json:"query" db:"query"`
	ComputedAt       time.Time `json:"computed_at" db:"computed_at"`
	TotalItems       int       `json:"total_items" db:"total_items"`
	AvgPrice         float64   `json:"avg_price" db:"avg_price"`
	MinPrice         float64   `json:"min_price" db:"min_price"`
	MaxPrice         float64   `json:"max_price" db:"max_price"`
	PriceStdDev      float64   `json:"price_std_dev" db:"price_std_dev"`
	DemandScore      float64   `json:"demand_score" db:"demand_score"`
	MarketSaturation float64   `json:"market_saturation" db:"market_saturation"` // recent sales / all-time items
	SellerDiversity  float64   `json:"seller_diversity" db:"seller_diversity"`   // unique sellers / total listings
	PriceTrendPct    float64   `json:"price_trend_pct" db:"price_trend_pct"`
	VolatilityPct    float64   `json:"volatility_pct" db:"volatility_pct"`
	SeasonalFactor   float64   `json:"seasonal_factor" db:"seasonal_factor"`
	ConfidenceScore  float64   `json:"confidence_score" db:"confidence_score"` // 0..1, scaled at the boundary
}

// PipelineResult is what one pipeline invocation returns to the caller.
// Summary is nil when analytics could not be computed; Items are still
// populated even when persistence failed.
type PipelineResult struct {
	RunID    uuid.UUID          `json:"run_id"`
	Query    string             `json:"query"`
	Items    []Item             `json:"items"`
	Summary  *AnalyticsSnapshot `json:"summary"`
	Rejected int                `json:"rejected"`
}
