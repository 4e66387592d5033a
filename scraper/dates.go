package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// Sold-date resolution runs two stages. Stage one walks known selector
// locations in order and tries to parse the first element whose text actually
// mentions a date. Stage two runs a regex bank over the whole node text. If
// both stages miss, the item is kept with the scrape time and flagged assumed
// so the aggregator can leave it out of daily rollups.

var soldDateSelectors = []string{
	".s-item__title--tagblock .POSITIVE",
	".s-item__title--tagblock span",
	".s-item__caption--signal.POSITIVE",
	".s-item__caption .POSITIVE",
	".s-item__ended-date",
	".s-item__endedDate",
	".s-item__detail--primary .s-item__dynamic",
}

var dateKeywords = []string{"sold", "ended", "completed"}

func resolveSoldDate(sel *goquery.Selection, now time.Time) (time.Time, models.DateConfidence) {
	for _, selector := range soldDateSelectors {
		text := strings.TrimSpace(sel.Find(selector).First().Text())
		if text == "" || !mentionsDate(text) {
			continue
		}
		if t, ok := parseDateText(text, now); ok {
			return t, models.DateConfidenceExact
		}
	}

	if t, ok := scanDateBank(sel.Text(), now); ok {
		return t, models.DateConfidenceExact
	}
	return now, models.DateConfidenceAssumed
}

func mentionsDate(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range dateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for name := range monthsByName {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

var monthsByName = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthFromName(name string) (time.Month, bool) {
	key := strings.ToLower(name)
	if len(key) > 3 {
		key = key[:3]
	}
	m, ok := monthsByName[key]
	return m, ok
}

var (
	reMonthDayYear = regexp.MustCompile(`(?i)\b([A-Za-z]{3,9})\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	reMonthDay     = regexp.MustCompile(`(?i)\b([A-Za-z]{3,9})\.?\s+(\d{1,2})\b`)
	reSlashDate    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reISODate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reRelativeWord = regexp.MustCompile(`(?i)\b(today|yesterday)\b`)
	reRelativeAgo  = regexp.MustCompile(`(?i)\b(\d+)\s+(day|hour|minute)s?\s+ago\b`)
)

// parseDateText handles text pulled from a known date location, e.g.
// "Sold  Dec 28, 2024" or "SOLD Jan 3".
func parseDateText(text string, now time.Time) (time.Time, bool) {
	return scanDateBank(text, now)
}

// scanDateBank applies the regex bank in precedence order. Explicit dates win
// over relative ones so text like "Sold Dec 28, 2024 - 3 days ago" resolves to
// the literal date.
func scanDateBank(text string, now time.Time) (time.Time, bool) {
	if m := reMonthDayYear.FindStringSubmatch(text); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := reSlashDate.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if validDate(year, month, day) {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := reISODate.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if validDate(year, month, day) {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := reMonthDay.FindStringSubmatch(text); m != nil {
		if t, ok := buildDateNoYear(m[1], m[2], now); ok {
			return t, true
		}
	}
	if m := reRelativeWord.FindStringSubmatch(text); m != nil {
		switch strings.ToLower(m[1]) {
		case "today":
			return now.UTC().Truncate(24 * time.Hour), true
		case "yesterday":
			return now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1), true
		}
	}
	if m := reRelativeAgo.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch strings.ToLower(m[2]) {
		case "day":
			return now.UTC().AddDate(0, 0, -n), true
		case "hour":
			return now.UTC().Add(-time.Duration(n) * time.Hour), true
		case "minute":
			return now.UTC().Add(-time.Duration(n) * time.Minute), true
		}
	}
	return time.Time{}, false
}

func buildDate(monthName, dayStr, yearStr string) (time.Time, bool) {
	month, ok := monthFromName(monthName)
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	year, _ := strconv.Atoi(yearStr)
	if !validDate(year, int(month), day) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

// buildDateNoYear resolves "Dec 28" style dates to the most recent past
// occurrence: sold dates are never in the future.
func buildDateNoYear(monthName, dayStr string, now time.Time) (time.Time, bool) {
	month, ok := monthFromName(monthName)
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	if !validDate(now.Year(), int(month), day) {
		return time.Time{}, false
	}
	t := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if t.After(now.UTC()) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, true
}

func validDate(year, month, day int) bool {
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return int(t.Month()) == month && t.Day() == day
}
