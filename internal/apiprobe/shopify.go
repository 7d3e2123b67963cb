package apiprobe

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cortexmap/cortex/internal/classify"
)

// probeConfidence is the confidence assigned to every field this package
// populates: API responses are structured data, not scraped markup, so
// they outrank every Pattern Engine rule (whose confidences top out below
// 0.8) but still defer to nothing else, since nothing runs after Layer 2.5.
const probeConfidence float32 = 0.9

type shopifyProductsResponse struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyCollectionsResponse struct {
	Collections []struct {
		Title string `json:"title"`
	} `json:"collections"`
}

type shopifyProduct struct {
	Title    string `json:"title"`
	Variants []struct {
		Price     string `json:"price"`
		Available bool   `json:"available"`
	} `json:"variants"`
}

func parseShopify(path string, body []byte, sig *classify.Signals, tracker classify.FieldConfidence) error {
	switch {
	case strings.HasSuffix(path, "/products.json"):
		var resp shopifyProductsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return err
		}
		if len(resp.Products) == 0 {
			return nil
		}
		p := resp.Products[0]
		if len(p.Variants) == 0 {
			return nil
		}
		v := p.Variants[0]
		if price, err := strconv.ParseFloat(v.Price, 64); err == nil {
			if tracker.Consider("price", probeConfidence) {
				sig.Price = price
				sig.HasPrice = true
			}
		}
		if tracker.Consider("availability", probeConfidence) {
			if v.Available {
				sig.Availability = 1
			} else {
				sig.Availability = 0
			}
		}
	case strings.HasSuffix(path, "/collections.json"):
		var resp shopifyCollectionsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return err
		}
		// Collection listings confirm this origin sells products but carry
		// no single-item commerce fields worth merging into sig.
	}
	return nil
}
