package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

func day(offset int) time.Time {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func itemsWithPrices(prices []float64) []models.Item {
	items := make([]models.Item, len(prices))
	for i, p := range prices {
		items[i] = models.Item{
			ItemID:   string(rune('a' + i)),
			Query:    "widget",
			Price:    p,
			SoldDate: day(0),
		}
	}
	return items
}

func TestStdDevKnownSeries(t *testing.T) {
	got := StdDev([]float64{10, 20, 30, 40, 50})
	if math.Abs(got-math.Sqrt(200)) > 1e-9 {
		t.Errorf("stddev = %f, want %f", got, math.Sqrt(200))
	}
}

func TestStdDevNeverNegative(t *testing.T) {
	// A constant series can push the radicand fractionally negative through
	// float rounding.
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = 1e9 + 0.1
	}
	if got := StdDev(vals); got < 0 || math.IsNaN(got) {
		t.Errorf("stddev must be clamped at zero, got %f", got)
	}
}

func TestSnapshotPriceSummary(t *testing.T) {
	engine := NewEngine()
	items := itemsWithPrices([]float64{10, 20, 30, 40, 50})
	aggs := []models.DailyAggregate{{
		Query: "widget", Date: day(0), AvgPrice: 30, MinPrice: 10, MaxPrice: 50, TotalSales: 5,
	}}

	report, err := engine.Analyze("widget", items, aggs, Totals{TotalItems: 5, DistinctSellers: 3}, day(1))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	snap := report.Snapshot
	if snap.AvgPrice != 30 {
		t.Errorf("avg = %f, want 30", snap.AvgPrice)
	}
	if snap.MinPrice != 10 || snap.MaxPrice != 50 {
		t.Errorf("min/max = %f/%f, want 10/50", snap.MinPrice, snap.MaxPrice)
	}
	// Population stddev of 10..50 is sqrt(200) ~= 14.142; the advertised
	// identity sqrt(E[x^2]-E[x]^2) must hold.
	if math.Abs(snap.PriceStdDev-math.Sqrt(200)) > 1e-9 {
		t.Errorf("stddev = %f, want %f", snap.PriceStdDev, math.Sqrt(200))
	}
	if snap.ConfidenceScore < 0 || snap.ConfidenceScore > 1 {
		t.Errorf("confidence out of range: %f", snap.ConfidenceScore)
	}
	want := 1 - math.Sqrt(200)/30
	if math.Abs(snap.ConfidenceScore-want) > 1e-9 {
		t.Errorf("confidence = %f, want %f", snap.ConfidenceScore, want)
	}
}

func TestConfidenceClamped(t *testing.T) {
	engine := NewEngine()
	// Wild spread: stddev > avg, raw score would be negative.
	items := itemsWithPrices([]float64{1, 1, 1, 1, 500})
	aggs := []models.DailyAggregate{{Query: "widget", Date: day(0), AvgPrice: 100.8, TotalSales: 5}}

	report, err := engine.Analyze("widget", items, aggs, Totals{TotalItems: 5}, day(1))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Snapshot.ConfidenceScore != 0 {
		t.Errorf("confidence must clamp to 0, got %f", report.Snapshot.ConfidenceScore)
	}
}

func TestMovingAverageLeadingNils(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	ma := MovingAverage(vals, 3)

	if len(ma) != 5 {
		t.Fatalf("expected same length as input, got %d", len(ma))
	}
	for i := 0; i < 2; i++ {
		if ma[i] != nil {
			t.Errorf("entry %d before a full window must be nil, got %f", i, *ma[i])
		}
	}
	wants := []float64{2, 3, 4}
	for i, want := range wants {
		got := ma[i+2]
		if got == nil || math.Abs(*got-want) > 1e-9 {
			t.Errorf("ma[%d] = %v, want %f", i+2, got, want)
		}
	}
}

func TestLinearRegressionPositiveSlopeMonotoneForecast(t *testing.T) {
	engine := NewEngine()
	prices := []float64{10, 12, 14, 16, 18, 20, 22}

	slope, _ := LinearRegression(prices)
	if slope <= 0 {
		t.Fatalf("strictly increasing series must yield positive slope, got %f", slope)
	}

	var aggs []models.DailyAggregate
	for i, p := range prices {
		aggs = append(aggs, models.DailyAggregate{Query: "widget", Date: day(i), AvgPrice: p, TotalSales: 1})
	}
	report, err := engine.Analyze("widget", itemsWithPrices(prices), aggs, Totals{TotalItems: 7}, day(8))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	for _, series := range [][]ForecastPoint{report.Forecast.ShortTerm, report.Forecast.LongTerm} {
		for i := 1; i < len(series); i++ {
			if series[i].Price <= series[i-1].Price {
				t.Fatalf("forecast not monotonically increasing at day %d: %f <= %f",
					series[i].Day, series[i].Price, series[i-1].Price)
			}
		}
	}
	if len(report.Forecast.ShortTerm) != 7 || len(report.Forecast.LongTerm) != 30 {
		t.Errorf("forecast horizons = %d/%d, want 7/30",
			len(report.Forecast.ShortTerm), len(report.Forecast.LongTerm))
	}

	band := 1.96 * report.Forecast.Slope
	p := report.Forecast.ShortTerm[0]
	if math.Abs((p.Upper-p.Price)-band) > 1e-9 {
		t.Errorf("upper band = %f, want price+%f", p.Upper, band)
	}
	if report.Snapshot.PriceTrendPct <= 0 {
		t.Errorf("rising series must report positive trend, got %f", report.Snapshot.PriceTrendPct)
	}
}

// A fit whose line starts at or below zero has no meaningful percentage base.
func TestTrendPctNonPositiveIntercept(t *testing.T) {
	slope, intercept := LinearRegression([]float64{1, 0, 14})
	if intercept >= 0 {
		t.Fatalf("series chosen for a negative intercept, got %f", intercept)
	}
	f := Forecast{Slope: slope, Intercept: intercept}
	if got := trendPct(f, 3); got != 0 {
		t.Errorf("trend with negative intercept = %f, want 0", got)
	}
	if got := trendPct(Forecast{Slope: 1, Intercept: 0}, 3); got != 0 {
		t.Errorf("trend with zero intercept = %f, want 0", got)
	}
}

func TestSeasonalSinglePeakInterior(t *testing.T) {
	// Five months with monthly average prices 1,2,5,2,1.
	var aggs []models.DailyAggregate
	for m, price := range []float64{1, 2, 5, 2, 1} {
		aggs = append(aggs, models.DailyAggregate{
			Query:      "widget",
			Date:       time.Date(2025, time.Month(m+1), 10, 0, 0, 0, 0, time.UTC),
			AvgPrice:   price,
			TotalSales: 2,
		})
	}

	seasonal := SeasonalIndices(aggs)
	if len(seasonal) != 5 {
		t.Fatalf("expected 5 month buckets, got %d", len(seasonal))
	}

	var peaks []int
	for i, s := range seasonal {
		if s.Peak {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) != 1 || peaks[0] != 2 {
		t.Fatalf("expected exactly one peak at the third month, got %v", peaks)
	}
	if seasonal[0].Peak || seasonal[len(seasonal)-1].Peak {
		t.Error("endpoints can never be peaks")
	}
}

func TestVolatilityFlatSeriesZero(t *testing.T) {
	if got := Volatility([]float64{10, 10, 10, 10}); got != 0 {
		t.Errorf("flat series volatility = %f, want 0", got)
	}
	if got := Volatility([]float64{10, 11, 10, 11}); got <= 0 {
		t.Errorf("oscillating series must have positive volatility, got %f", got)
	}
}

func TestElasticitySkipsZeroPriceChange(t *testing.T) {
	aggs := []models.DailyAggregate{
		{Date: day(0), AvgPrice: 10, TotalSales: 10},
		{Date: day(1), AvgPrice: 10, TotalSales: 20}, // price unchanged: excluded
		{Date: day(2), AvgPrice: 11, TotalSales: 10}, // +10% price, -50% sales
	}
	got := Elasticity(aggs)
	want := -0.5 / 0.1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("elasticity = %f, want %f", got, want)
	}
}

func TestDemandAndSaturation(t *testing.T) {
	engine := NewEngine()
	now := day(10)

	var aggs []models.DailyAggregate
	for i := 4; i < 10; i++ {
		aggs = append(aggs, models.DailyAggregate{Query: "widget", Date: day(i), AvgPrice: 20, TotalSales: 2})
	}
	report, err := engine.Analyze("widget", itemsWithPrices([]float64{20}), aggs,
		Totals{TotalItems: 48, DistinctSellers: 12}, now)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	snap := report.Snapshot
	// 12 sales in the trailing 7 days.
	if math.Abs(snap.DemandScore-12.0/7.0) > 1e-9 {
		t.Errorf("demand = %f, want %f", snap.DemandScore, 12.0/7.0)
	}
	if math.Abs(snap.MarketSaturation-12.0/48.0) > 1e-9 {
		t.Errorf("saturation = %f, want %f", snap.MarketSaturation, 12.0/48.0)
	}
	if math.Abs(snap.SellerDiversity-12.0/48.0) > 1e-9 {
		t.Errorf("diversity = %f, want %f", snap.SellerDiversity, 12.0/48.0)
	}
}

func TestAnalyzeNoData(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Analyze("widget", nil, nil, Totals{}, day(0))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
