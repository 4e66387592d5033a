package scraper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("load fixture %s: %v", name, err)
	}
	return string(data)
}

var fixedNow = time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

func TestExtractSearchResults(t *testing.T) {
	html := loadFixture(t, "search_results.html")

	candidates, nodes, err := Extract("nintendo switch oled", html, fixedNow)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if nodes != 7 {
		t.Errorf("expected 7 nodes, got %d", nodes)
	}
	// Template node is discarded, the remaining six all extract.
	if len(candidates) != 6 {
		t.Fatalf("expected 6 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.ItemID != "123456789012" {
		t.Errorf("expected item id 123456789012, got %q", first.ItemID)
	}
	if first.Title != "Nintendo Switch OLED Console White 64GB" {
		t.Errorf("boilerplate not stripped from title: %q", first.Title)
	}
	if first.Price != 249.99 || !first.PriceParsed {
		t.Errorf("expected price 249.99, got %.2f (parsed=%v)", first.Price, first.PriceParsed)
	}
	if first.SellerID != "gametrader_99" {
		t.Errorf("expected seller gametrader_99, got %q", first.SellerID)
	}
	wantDate := time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)
	if !first.SoldDate.Equal(wantDate) {
		t.Errorf("expected sold date %s, got %s", wantDate, first.SoldDate)
	}
	if first.DateConfidence != models.DateConfidenceExact {
		t.Errorf("expected exact date confidence, got %s", first.DateConfidence)
	}
	if first.ImageURL != "https://i.ebayimg.com/images/g/abc123/s-l225.jpg" {
		t.Errorf("unexpected image url %q", first.ImageURL)
	}
}

func TestExtractSlugURLAndPriceRange(t *testing.T) {
	html := loadFixture(t, "search_results.html")
	candidates, _, err := Extract("nintendo switch oled", html, fixedNow)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	bundle := candidates[1]
	if bundle.ItemID != "987654321098" {
		t.Errorf("expected id from slug URL, got %q", bundle.ItemID)
	}
	// Ranges resolve to the low bound.
	if bundle.Price != 230.00 {
		t.Errorf("expected range low bound 230.00, got %.2f", bundle.Price)
	}
	// Date comes from the regex bank: "Ended 01/15/2025" in the node text.
	wantDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if !bundle.SoldDate.Equal(wantDate) {
		t.Errorf("expected sold date %s, got %s", wantDate, bundle.SoldDate)
	}
	if bundle.DateConfidence != models.DateConfidenceExact {
		t.Errorf("expected exact confidence, got %s", bundle.DateConfidence)
	}
}

// The third listing carries a selector-strategy date ("Sold Jan 3") and an
// unrelated regex-parseable date (12/25/2020) in its free text. The selector
// result must win.
func TestExtractDateSelectorBeatsRegexBank(t *testing.T) {
	html := loadFixture(t, "search_results.html")
	candidates, _, err := Extract("nintendo switch oled", html, fixedNow)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	neon := candidates[2]
	want := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	if !neon.SoldDate.Equal(want) {
		t.Errorf("expected selector date %s, got %s", want, neon.SoldDate)
	}
	if neon.SoldDate.Year() == 2020 {
		t.Error("regex bank date took precedence over selector strategy")
	}
	if neon.SellerID != "retro-resale-shop" {
		t.Errorf("expected seller from /usr/ URL, got %q", neon.SellerID)
	}
}

func TestExtractHashFallbackAndAssumedDate(t *testing.T) {
	html := loadFixture(t, "search_results.html")
	candidates, _, err := Extract("nintendo switch oled", html, fixedNow)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	last := candidates[len(candidates)-1]
	if last.ItemID == "" {
		t.Fatal("expected synthetic item id, got empty")
	}
	// No numeric id in the URL, so the id must be a 32-char fingerprint.
	if len(last.ItemID) != 32 {
		t.Errorf("expected 32-char fingerprint id, got %q", last.ItemID)
	}
	if last.DateConfidence != models.DateConfidenceAssumed {
		t.Errorf("expected assumed confidence, got %s", last.DateConfidence)
	}
	if !last.SoldDate.Equal(fixedNow) {
		t.Errorf("assumed date should be the scrape time, got %s", last.SoldDate)
	}
	if last.SellerID != models.SellerUnknown {
		t.Errorf("expected unknown seller, got %q", last.SellerID)
	}
}

func TestExtractEmptyResultsPage(t *testing.T) {
	html := loadFixture(t, "empty_results.html")
	candidates, nodes, err := Extract("rare widget xq-9000", html, fixedNow)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if nodes != 1 {
		t.Errorf("expected only the template node, got %d", nodes)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(candidates))
	}
}

func TestCleanTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"New Listing Nintendo Switch OLED", "Nintendo Switch OLED"},
		{"SPONSORED Widget Pro", "Widget Pro"},
		{"Sold  Nintendo Switch OLED Console", "Nintendo Switch OLED Console"},
		// Prefixes must only strip whole words.
		{"Soldering Iron Kit 60W Adjustable", "Soldering Iron Kit 60W Adjustable"},
		{"New Listing Soldiers of Fortune DVD", "Soldiers of Fortune DVD"},
		{"New Listings of 2024 Calendar", "New Listings of 2024 Calendar"},
		{"Sold", ""},
	}
	for _, tc := range cases {
		if got := cleanTitle(tc.in); got != tc.want {
			t.Errorf("cleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"$249.99", 249.99, true},
		{"$1,234.56", 1234.56, true},
		{"$230.00 to $260.00", 230.00, true},
		{"USD 42", 42, true},
		{"", 0, false},
		{"Free shipping", 0, false},
	}
	for _, tc := range cases {
		got, ok := parsePrice(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("parsePrice(%q) = %.2f, %v; want %.2f, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
