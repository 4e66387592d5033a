package models

import "time"

// DateConfidence marks how an item's sold date was resolved.
type DateConfidence string

const (
	// DateConfidenceExact means the date was parsed from page markup.
	DateConfidenceExact DateConfidence = "exact"
	// DateConfidenceAssumed means no date could be extracted and the scrape
	// time was substituted. Assumed items are kept out of daily rollups.
	DateConfidenceAssumed DateConfidence = "assumed"
)

// CandidateItem is one listing pulled from a result node, prior to validation.
type CandidateItem struct {
	ItemID         string         `json:"item_id"`
	Query          string         `json:"query"`
	Title          string         `json:"title"`
	Price          float64        `json:"price"`
	PriceParsed    bool           `json:"price_parsed"`
	SoldDate       time.Time      `json:"sold_date"`
	DateConfidence DateConfidence `json:"date_confidence"`
	SellerID       string         `json:"seller_id"`
	SourceURL      string         `json:"source_url"`
	ImageURL       string         `json:"image_url"`
}

// Item is a validated sold listing. Identity is (Query, ItemID); the record is
// immutable once it leaves validation.
type Item struct {
	ItemID         string         `json:"item_id" db:"item_id"`
	Query          string         `json:"query" db:"query"`
	Title          string         `json:"title" db:"title"`
	Price          float64        `json:"price" db:"price"`
	SoldDate       time.Time      `json:"sold_date" db:"sold_date"`
	DateConfidence DateConfidence `json:"date_confidence" db:"date_confidence"`
	SellerID       string         `json:"seller_id" db:"seller_id"`
	SourceURL      string         `json:"source_url" db:"source_url"`
	ImageURL       string         `json:"image_url" db:"image_url"`
	ScrapedAt      time.Time      `json:"scraped_at" db:"scraped_at"`
}

// SellerUnknown is stored when no seller could be resolved from the node.
const SellerUnknown = "unknown"

// Day returns the item's calendar-day bucket in UTC.
func (i *Item) Day() time.Time {
	return i.SoldDate.UTC().Truncate(24 * time.Hour)
}
