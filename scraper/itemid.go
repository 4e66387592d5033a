package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/identity"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// Item id extraction walks the URL patterns in order; the first capture wins.
// When none match, the id falls back to a fingerprint of the normalized URL so
// dedupe and upserts stay stable across fetches.
var itemIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/itm/(\d{9,13})(?:[/?]|$)`),
	regexp.MustCompile(`/itm/[^/?]+/(\d{9,13})(?:[/?]|$)`),
	regexp.MustCompile(`[?&]item=(\d{9,13})\b`),
	regexp.MustCompile(`[?&]itemId=(\d{9,13})\b`),
	regexp.MustCompile(`/p/(\d{6,13})(?:[/?]|$)`),
}

func extractItemID(listingURL, title string) string {
	for _, re := range itemIDPatterns {
		if m := re.FindStringSubmatch(listingURL); m != nil {
			return m[1]
		}
	}
	return identity.ListingFingerprint(listingURL, title)
}

var (
	// "seller_name (1,234) 98.7%" in the seller info line.
	reSellerInfo = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s*\(`)

	sellerURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/usr/([^/?&#]+)`),
		regexp.MustCompile(`[?&]_ssn=([^&#]+)`),
	}
)

var sellerSelectors = []string{
	".s-item__seller-info-text",
	".s-item__seller-info",
	".s-item__etrs-text",
}

// extractSellerID tries the seller info line, then seller-profile URLs found
// anywhere in the node. Sellers are frequently absent from search results, so
// "unknown" is an expected value, not an error.
func extractSellerID(sel *goquery.Selection) string {
	for _, selector := range sellerSelectors {
		text := strings.TrimSpace(sel.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if m := reSellerInfo.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	var seller string
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		for _, re := range sellerURLPatterns {
			if m := re.FindStringSubmatch(href); m != nil {
				seller = m[1]
				return false
			}
		}
		return true
	})
	if seller != "" {
		return seller
	}
	return models.SellerUnknown
}
