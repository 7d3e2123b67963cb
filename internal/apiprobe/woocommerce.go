package apiprobe

import (
	"encoding/json"
	"strconv"

	"github.com/cortexmap/cortex/internal/classify"
)

type wooCommerceProduct struct {
	Prices struct {
		Price               string `json:"price"`
		CurrencyMinorUnit    int    `json:"currency_minor_unit"`
		RegularPrice         string `json:"regular_price"`
	} `json:"prices"`
	IsInStock     bool `json:"is_in_stock"`
	AverageRating string `json:"average_rating"`
	ReviewCount   int    `json:"review_count"`
}

// parseWooCommerce reads the WooCommerce Store API's product array shape.
// Prices are minor-unit integers as strings (e.g. "1999" at
// currency_minor_unit=2 means 19.99); this divides by 10^minor_unit.
func parseWooCommerce(body []byte, sig *classify.Signals, tracker classify.FieldConfidence) error {
	var products []wooCommerceProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}
	p := products[0]

	if raw, err := strconv.ParseFloat(p.Prices.Price, 64); err == nil {
		divisor := 1.0
		for i := 0; i < p.Prices.CurrencyMinorUnit; i++ {
			divisor *= 10
		}
		if tracker.Consider("price", probeConfidence) {
			sig.Price = raw / divisor
			sig.HasPrice = true
		}
	}
	if tracker.Consider("availability", probeConfidence) {
		if p.IsInStock {
			sig.Availability = 1
		} else {
			sig.Availability = 0
		}
	}
	if rating, err := strconv.ParseFloat(p.AverageRating, 64); err == nil && rating > 0 {
		if tracker.Consider("rating", probeConfidence) {
			sig.Rating = rating
			sig.HasRating = true
		}
	}
	if p.ReviewCount > 0 && tracker.Consider("review_count", probeConfidence) {
		sig.ReviewCount = p.ReviewCount
	}
	return nil
}
