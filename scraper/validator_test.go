package scraper

import (
	"math"
	"testing"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

func candidate(id string, price float64) models.CandidateItem {
	return models.CandidateItem{
		ItemID:         id,
		Query:          "widget",
		Title:          "Widget " + id,
		Price:          price,
		PriceParsed:    true,
		SoldDate:       time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		DateConfidence: models.DateConfidenceExact,
		SellerID:       "seller-" + id,
	}
}

func TestValidateDropsBadPrices(t *testing.T) {
	scrapedAt := time.Now().UTC()
	zero := candidate("b", 0)
	negative := candidate("c", -5)
	nan := candidate("d", math.NaN())
	unparsed := candidate("e", 10)
	unparsed.PriceParsed = false

	items, rejected := Validate([]models.CandidateItem{
		candidate("a", 19.99), zero, negative, nan, unparsed,
	}, scrapedAt)

	if len(items) != 1 {
		t.Fatalf("expected 1 valid item, got %d", len(items))
	}
	if rejected != 4 {
		t.Errorf("expected 4 rejected, got %d", rejected)
	}
	if items[0].ItemID != "a" {
		t.Errorf("wrong survivor: %q", items[0].ItemID)
	}
	if !items[0].ScrapedAt.Equal(scrapedAt) {
		t.Errorf("scraped_at not stamped: %s", items[0].ScrapedAt)
	}
}

func TestValidateDedupeKeepsFirst(t *testing.T) {
	first := candidate("x", 10)
	second := candidate("x", 99)

	items, rejected := Validate([]models.CandidateItem{first, second}, time.Now().UTC())
	if len(items) != 1 {
		t.Fatalf("expected 1 item after dedupe, got %d", len(items))
	}
	if rejected != 1 {
		t.Errorf("expected 1 rejected duplicate, got %d", rejected)
	}
	if items[0].Price != 10 {
		t.Errorf("dedupe must keep the first occurrence, got price %.2f", items[0].Price)
	}
}

func TestValidateMissingDate(t *testing.T) {
	noDate := candidate("n", 10)
	noDate.SoldDate = time.Time{}

	items, rejected := Validate([]models.CandidateItem{noDate}, time.Now().UTC())
	if len(items) != 0 || rejected != 1 {
		t.Errorf("expected zero-date candidate rejected, got %d items, %d rejected", len(items), rejected)
	}
}

func TestValidateEmptyBatch(t *testing.T) {
	items, rejected := Validate(nil, time.Now().UTC())
	if len(items) != 0 || rejected != 0 {
		t.Errorf("expected nothing from empty batch, got %d items, %d rejected", len(items), rejected)
	}
}
