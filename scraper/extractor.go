package scraper

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// Extract parses a sold-listings search page into candidate items. It returns
// the candidates, the number of listing nodes seen (before the template node
// is discarded), and an error only when the document itself cannot be parsed.
// Individual node failures are logged and skipped; one broken listing never
// kills the page.
func Extract(query, pageHTML string, now time.Time) ([]models.CandidateItem, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, 0, fmt.Errorf("parse page: %w", err)
	}

	nodes := doc.Find("li.s-item, div.s-item")
	total := nodes.Length()

	var candidates []models.CandidateItem
	nodes.Each(func(i int, sel *goquery.Selection) {
		// The first .s-item node is a hidden template eBay renders
		// before real results. It carries placeholder text, never data.
		if i == 0 {
			return
		}
		candidate, ok := extractNode(query, sel, now)
		if !ok {
			return
		}
		candidates = append(candidates, candidate)
	})

	return candidates, total, nil
}

func extractNode(query string, sel *goquery.Selection, now time.Time) (candidate models.CandidateItem, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extractor] node panic for %q: %v", query, r)
			ok = false
		}
	}()

	title := cleanTitle(sel.Find(".s-item__title").First().Text())
	if title == "" || strings.EqualFold(title, "Shop on eBay") {
		return candidate, false
	}

	link, _ := sel.Find("a.s-item__link").First().Attr("href")
	link = strings.TrimSpace(link)

	price, priceOK := parsePrice(sel.Find(".s-item__price").First().Text())

	soldDate, confidence := resolveSoldDate(sel, now)

	candidate = models.CandidateItem{
		ItemID:         extractItemID(link, title),
		Query:          query,
		Title:          title,
		Price:          price,
		PriceParsed:    priceOK,
		SoldDate:       soldDate,
		DateConfidence: confidence,
		SellerID:       extractSellerID(sel),
		SourceURL:      link,
		ImageURL:       extractImageURL(sel),
	}
	return candidate, true
}

var (
	reTitleNoise = regexp.MustCompile(`^(?:New Listing|NEW LISTING|SPONSORED|Sponsored)\b\s*`)
	reSoldPrefix = regexp.MustCompile(`^Sold\b\s*`)
)

// cleanTitle strips listing boilerplate. Prefixes only come off at a word
// boundary: a title that merely starts with the same letters ("Soldering
// Iron") keeps them.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for {
		stripped := reTitleNoise.ReplaceAllString(title, "")
		if stripped == title {
			break
		}
		title = strings.TrimSpace(stripped)
	}
	// Screen-reader prefix on sold results.
	return strings.TrimSpace(reSoldPrefix.ReplaceAllString(title, ""))
}

var rePriceValue = regexp.MustCompile(`[\d,]+(?:\.\d{1,2})?`)

// parsePrice extracts a numeric price from text like "$1,234.56" or
// "$10.00 to $25.00". Ranges resolve to the low bound.
func parsePrice(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}
	if idx := strings.Index(strings.ToLower(text), " to "); idx > 0 {
		text = text[:idx]
	}
	m := rePriceValue.FindString(text)
	if m == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func extractImageURL(sel *goquery.Selection) string {
	img := sel.Find(".s-item__image-wrapper img, .s-item__image img").First()
	if src, exists := img.Attr("src"); exists && !strings.Contains(src, "data:image") {
		return strings.TrimSpace(src)
	}
	if src, exists := img.Attr("data-src"); exists {
		return strings.TrimSpace(src)
	}
	return ""
}
