package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// ErrNoData means there is nothing to analyze for the query yet.
var ErrNoData = errors.New("analytics: no data for query")

const (
	defaultRecentWindowDays = 7
	shortForecastDays       = 7
	longForecastDays        = 30
)

var defaultMAWindows = []int{7, 14, 30}

// Engine computes derived market statistics. It is pure computation over
// already-persisted data: no network, no retries, safe to rerun at any time.
type Engine struct {
	RecentWindowDays int
	MAWindows        []int
}

func NewEngine() *Engine {
	return &Engine{
		RecentWindowDays: defaultRecentWindowDays,
		MAWindows:        defaultMAWindows,
	}
}

// Totals carries the all-time counters the snapshot ratios need. They come
// from storage, not from the windowed series.
type Totals struct {
	TotalItems      int
	DistinctSellers int
}

// ForecastPoint is one extrapolated day. Upper and Lower bound the point by
// the 1.96-slope band.
type ForecastPoint struct {
	Day   int     `json:"day"` // 1-based offset from the last observed day
	Price float64 `json:"price"`
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

// Forecast is a linear extrapolation of the fitted price line. The band is
// value plus/minus 1.96 times the slope magnitude, which is deliberately a
// rough envelope rather than a textbook prediction interval.
type Forecast struct {
	Slope     float64         `json:"slope"`
	Intercept float64         `json:"intercept"`
	ShortTerm []ForecastPoint `json:"short_term"`
	LongTerm  []ForecastPoint `json:"long_term"`
}

// SeasonalIndex is one calendar-month bucket of the series.
type SeasonalIndex struct {
	Month    time.Month `json:"month"`
	Year     int        `json:"year"`
	AvgPrice float64    `json:"avg_price"`
	AvgSales float64    `json:"avg_sales"`
	Peak     bool       `json:"peak"`
}

// Report is the full analysis product. Snapshot is the persisted summary; the
// rest is returned to callers that want the underlying series.
type Report struct {
	Snapshot       models.AnalyticsSnapshot
	MovingAverages map[int][]*float64
	Forecast       Forecast
	Seasonal       []SeasonalIndex
	Elasticity     float64
}

// Analyze computes the report for one query. items are the individual sales in
// the window (price summary stats come from these), aggs the day-level series
// ordered or unordered (it sorts a copy), and totals the all-time counters.
func (e *Engine) Analyze(query string, items []models.Item, aggs []models.DailyAggregate, totals Totals, now time.Time) (*Report, error) {
	if len(items) == 0 && len(aggs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, query)
	}

	series := make([]models.DailyAggregate, len(aggs))
	copy(series, aggs)
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	prices := make([]float64, 0, len(items))
	for _, it := range items {
		prices = append(prices, it.Price)
	}

	avg, min, max := priceSummary(prices)
	stdDev := StdDev(prices)

	dailyAvg := make([]float64, len(series))
	for i, a := range series {
		dailyAvg[i] = a.AvgPrice
	}

	recentWindow := e.RecentWindowDays
	if recentWindow <= 0 {
		recentWindow = defaultRecentWindowDays
	}
	recentSales := recentSalesCount(series, now, recentWindow)

	demandScore := float64(recentSales) / float64(recentWindow)

	var saturation float64
	if totals.TotalItems > 0 {
		saturation = float64(recentSales) / float64(totals.TotalItems)
	}
	var diversity float64
	if totals.TotalItems > 0 {
		diversity = float64(totals.DistinctSellers) / float64(totals.TotalItems)
	}

	forecast := e.forecast(dailyAvg)
	seasonal := SeasonalIndices(series)

	mas := make(map[int][]*float64, len(e.MAWindows))
	windows := e.MAWindows
	if len(windows) == 0 {
		windows = defaultMAWindows
	}
	for _, w := range windows {
		mas[w] = MovingAverage(dailyAvg, w)
	}

	snap := models.AnalyticsSnapshot{
		Query:            query,
		ComputedAt:       now.UTC(),
		TotalItems:       totals.TotalItems,
		AvgPrice:         avg,
		MinPrice:         min,
		MaxPrice:         max,
		PriceStdDev:      stdDev,
		DemandScore:      demandScore,
		MarketSaturation: saturation,
		SellerDiversity:  diversity,
		PriceTrendPct:    trendPct(forecast, len(dailyAvg)),
		VolatilityPct:    Volatility(dailyAvg),
		SeasonalFactor:   seasonalFactor(seasonal, now),
		ConfidenceScore:  confidenceScore(avg, stdDev),
	}

	return &Report{
		Snapshot:       snap,
		MovingAverages: mas,
		Forecast:       forecast,
		Seasonal:       seasonal,
		Elasticity:     Elasticity(series),
	}, nil
}

func priceSummary(prices []float64) (avg, min, max float64) {
	if len(prices) == 0 {
		return 0, 0, 0
	}
	min, max = prices[0], prices[0]
	sum := 0.0
	for _, p := range prices {
		sum += p
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return sum / float64(len(prices)), min, max
}

// StdDev is the population standard deviation via sqrt(E[x^2] - E[x]^2). The
// radicand is clamped at zero: float rounding can push it fractionally
// negative on near-constant series.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	n := float64(len(values))
	mean := sum / n
	radicand := sumSq/n - mean*mean
	if radicand < 0 {
		radicand = 0
	}
	return math.Sqrt(radicand)
}

// MovingAverage returns a series the same length as values. Entries before a
// full window has accumulated are nil, not zero.
func MovingAverage(values []float64, window int) []*float64 {
	out := make([]*float64, len(values))
	if window <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			avg := sum / float64(window)
			out[i] = &avg
		}
	}
	return out
}

// Volatility is the population stddev of day-over-day percentage changes of
// the daily average price.
func Volatility(dailyAvg []float64) float64 {
	var changes []float64
	for i := 1; i < len(dailyAvg); i++ {
		prev := dailyAvg[i-1]
		if prev == 0 {
			continue
		}
		changes = append(changes, (dailyAvg[i]-prev)/prev*100)
	}
	return StdDev(changes)
}

// Elasticity is the mean over consecutive day pairs of the ratio of percent
// sales change to percent price change. Pairs with zero price change have an
// undefined ratio and are excluded from the mean.
func Elasticity(series []models.DailyAggregate) float64 {
	var sum float64
	var n int
	for i := 1; i < len(series); i++ {
		prevPrice := series[i-1].AvgPrice
		prevSales := float64(series[i-1].TotalSales)
		if prevPrice == 0 || prevSales == 0 {
			continue
		}
		priceChange := (series[i].AvgPrice - prevPrice) / prevPrice
		if priceChange == 0 {
			continue
		}
		salesChange := (float64(series[i].TotalSales) - prevSales) / prevSales
		sum += salesChange / priceChange
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// LinearRegression fits y = slope*x + intercept with x as the zero-based
// index of y.
func LinearRegression(y []float64) (slope, intercept float64) {
	n := float64(len(y))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, y[0]
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func (e *Engine) forecast(dailyAvg []float64) Forecast {
	slope, intercept := LinearRegression(dailyAvg)
	f := Forecast{Slope: slope, Intercept: intercept}
	start := len(dailyAvg)
	band := 1.96 * math.Abs(slope)
	project := func(days int) []ForecastPoint {
		pts := make([]ForecastPoint, days)
		for d := 1; d <= days; d++ {
			price := slope*float64(start+d-1) + intercept
			lower := price - band
			if lower < 0 {
				lower = 0
			}
			pts[d-1] = ForecastPoint{Day: d, Price: price, Upper: price + band, Lower: lower}
		}
		return pts
	}
	f.ShortTerm = project(shortForecastDays)
	f.LongTerm = project(longForecastDays)
	return f
}

// trendPct is the fitted line's total change over the window as a percentage
// of its starting value.
func trendPct(f Forecast, days int) float64 {
	if days < 2 {
		return 0
	}
	startVal := f.Intercept
	endVal := f.Slope*float64(days-1) + f.Intercept
	// A non-positive fitted start would flip the sign of the percentage.
	if startVal <= 0 {
		return 0
	}
	return (endVal - startVal) / startVal * 100
}

// SeasonalIndices buckets the series by calendar month. A bucket is a peak
// when its average price exceeds both chronological neighbors; the first and
// last bucket can never be peaks.
func SeasonalIndices(series []models.DailyAggregate) []SeasonalIndex {
	type bucketKey struct {
		year  int
		month time.Month
	}
	type bucket struct {
		priceSum float64
		salesSum int
		days     int
	}
	buckets := make(map[bucketKey]*bucket)
	var order []bucketKey
	for _, a := range series {
		key := bucketKey{a.Date.Year(), a.Date.Month()}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.priceSum += a.AvgPrice
		b.salesSum += a.TotalSales
		b.days++
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].month < order[j].month
	})

	out := make([]SeasonalIndex, len(order))
	for i, key := range order {
		b := buckets[key]
		out[i] = SeasonalIndex{
			Month:    key.month,
			Year:     key.year,
			AvgPrice: b.priceSum / float64(b.days),
			AvgSales: float64(b.salesSum) / float64(b.days),
		}
	}
	for i := 1; i < len(out)-1; i++ {
		if out[i].AvgPrice > out[i-1].AvgPrice && out[i].AvgPrice > out[i+1].AvgPrice {
			out[i].Peak = true
		}
	}
	return out
}

// seasonalFactor is the current month's average price relative to the mean of
// all monthly averages; 1 when there is not enough data to say.
func seasonalFactor(seasonal []SeasonalIndex, now time.Time) float64 {
	if len(seasonal) == 0 {
		return 1
	}
	var total float64
	var current float64
	var haveCurrent bool
	for _, s := range seasonal {
		total += s.AvgPrice
		if s.Month == now.Month() {
			current = s.AvgPrice
			haveCurrent = true
		}
	}
	mean := total / float64(len(seasonal))
	if !haveCurrent || mean == 0 {
		return 1
	}
	return current / mean
}

func confidenceScore(avg, stdDev float64) float64 {
	if avg == 0 {
		return 0
	}
	score := 1 - stdDev/avg
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func recentSalesCount(series []models.DailyAggregate, now time.Time, windowDays int) int {
	cutoff := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -windowDays)
	total := 0
	for _, a := range series {
		if a.Date.After(cutoff) {
			total += a.TotalSales
		}
	}
	return total
}
