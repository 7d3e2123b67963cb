package extract

import (
	"strconv"
	"strings"

	"github.com/cortexmap/cortex/internal/classify"
)

// linkedDataConfidence is the trust level assigned to commerce fields read
// straight out of a page's own JSON-LD: above anything the Pattern
// Engine's CSS rule table can claim (it tops out at 0.75), since these are
// values the page author declared explicitly rather than inferred from
// visible markup, but below the API Probe's direct read from the store's
// own backend.
const linkedDataConfidence float32 = 0.85

// ApplyLinkedData folds schema.org Offer and AggregateRating fields out of
// every JSON-LD record into sig, subject to tracker's max-confidence-wins
// arbitration. JSON-LD is the first structured source the pipeline reads
// for a page, so its price/rating/availability claims take precedence over
// the Pattern Engine's CSS-selector rules unless a later, more confident
// layer overwrites them.
func ApplyLinkedData(records []LinkedDataRecord, sig *classify.Signals, tracker classify.FieldConfidence) {
	for _, rec := range records {
		applyOffer(rec.Raw, sig, tracker)
		applyAggregateRating(rec.Raw, sig, tracker)
	}
}

func applyOffer(raw map[string]any, sig *classify.Signals, tracker classify.FieldConfidence) {
	offer := firstOffer(raw["offers"])
	if offer == nil {
		return
	}
	if price, ok := parseFloatAny(offer["price"]); ok && tracker.Consider("price", linkedDataConfidence) {
		sig.Price = price
		sig.HasPrice = true
	}
	if avail, ok := offer["availability"].(string); ok && tracker.Consider("availability", linkedDataConfidence) {
		sig.Availability = availabilityFromSchema(avail)
	}
}

// firstOffer resolves the "offers" property, which schema.org allows to be
// either a single Offer object or an AggregateOffer/array of Offers.
func firstOffer(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func applyAggregateRating(raw map[string]any, sig *classify.Signals, tracker classify.FieldConfidence) {
	rating, ok := raw["aggregateRating"].(map[string]any)
	if !ok {
		return
	}
	if val, ok := parseFloatAny(rating["ratingValue"]); ok && tracker.Consider("rating", linkedDataConfidence) {
		sig.Rating = val
		sig.HasRating = true
	}
	if count, ok := parseFloatAny(rating["reviewCount"]); ok && tracker.Consider("review_count", linkedDataConfidence) {
		sig.ReviewCount = int(count)
	}
}

// parseFloatAny accepts both JSON number and JSON string encodings of a
// numeric field; schema.org publishers use both in the wild.
func parseFloatAny(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// availabilityFromSchema reads a schema.org ItemAvailability value, which
// is conventionally the full "https://schema.org/InStock" URL but shows up
// in the wild as a bare token too.
func availabilityFromSchema(v string) float64 {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "outofstock"), strings.Contains(lower, "discontinued"), strings.Contains(lower, "soldout"):
		return 0
	case strings.Contains(lower, "instock"), strings.Contains(lower, "preorder"), strings.Contains(lower, "limitedavailability"), strings.Contains(lower, "instoreonly"), strings.Contains(lower, "onlineonly"):
		return 1
	default:
		return 0.5
	}
}
