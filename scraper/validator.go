package scraper

import (
	"log"
	"math"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// Validate filters candidates into storable items. Rules, in order: the price
// must have parsed and be a positive finite number, the sold date must be set,
// and duplicate (query, itemID) pairs keep the first occurrence. The rejected
// count covers everything dropped here.
func Validate(candidates []models.CandidateItem, scrapedAt time.Time) ([]models.Item, int) {
	seen := make(map[string]struct{}, len(candidates))
	items := make([]models.Item, 0, len(candidates))
	rejected := 0

	for _, c := range candidates {
		switch {
		case !c.PriceParsed:
			log.Printf("[validator] rejected %s: unparseable price", c.ItemID)
			rejected++
			continue
		case c.Price <= 0 || math.IsNaN(c.Price) || math.IsInf(c.Price, 0):
			log.Printf("[validator] rejected %s: non-positive price %.2f", c.ItemID, c.Price)
			rejected++
			continue
		case c.SoldDate.IsZero():
			log.Printf("[validator] rejected %s: missing sold date", c.ItemID)
			rejected++
			continue
		case c.ItemID == "":
			rejected++
			continue
		}

		if _, dup := seen[c.ItemID]; dup {
			rejected++
			continue
		}
		seen[c.ItemID] = struct{}{}

		items = append(items, models.Item{
			ItemID:         c.ItemID,
			Query:          c.Query,
			Title:          c.Title,
			Price:          c.Price,
			SoldDate:       c.SoldDate,
			DateConfidence: c.DateConfidence,
			SellerID:       c.SellerID,
			SourceURL:      c.SourceURL,
			ImageURL:       c.ImageURL,
			ScrapedAt:      scrapedAt,
		})
	}
	return items, rejected
}
