package pattern

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cortexmap/cortex/internal/classify"
)

// Apply runs every rule that fingerprint selects against doc, writing any
// field whose confidence beats what tracker already recorded onto sig.
// Rules run via goquery the same way the Structured Extractor walks the
// document; nothing here re-parses HTML.
func Apply(doc *goquery.Document, fingerprint string, sig *classify.Signals, tracker classify.FieldConfidence) error {
	rules, err := RulesFor(fingerprint)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		sel := doc.Find(rule.Selector)
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.First().Text())
		applyRule(rule, text, sig, tracker)
	}
	return nil
}

func applyRule(rule Rule, text string, sig *classify.Signals, tracker classify.FieldConfidence) {
	value := text
	if rule.compiled != nil {
		m := rule.compiled.FindStringSubmatch(text)
		if len(m) < 2 {
			return
		}
		value = m[1]
	} else if text == "" && rule.Field != "has_login_form" && rule.Field != "has_cart_item" {
		// Value rules without a regex still require non-empty matched text;
		// presence-only flag rules fire on the selector match alone.
		return
	}

	switch rule.Field {
	case "price":
		setFloat(rule, value, tracker, func(f float64) { sig.Price = f; sig.HasPrice = true })
	case "original_price":
		setFloat(rule, value, tracker, func(f float64) { sig.OriginalPrice = f; sig.HasPrice = true })
	case "rating":
		setFloat(rule, value, tracker, func(f float64) { sig.Rating = f; sig.HasRating = true })
	case "review_count":
		setFloat(rule, value, tracker, func(f float64) { sig.ReviewCount = int(f) })
	case "has_login_form":
		if tracker.Consider(rule.Field, rule.Confidence) {
			sig.HasLoginForm = true
		}
	case "has_cart_item":
		if tracker.Consider(rule.Field, rule.Confidence) {
			sig.HasCartItem = true
		}
	case "availability_text":
		if tracker.Consider(rule.Field, rule.Confidence) {
			sig.Availability = availabilityScore(value)
		}
	}
}

func setFloat(rule Rule, raw string, tracker classify.FieldConfidence, assign func(float64)) {
	cleaned := strings.NewReplacer(",", "", "$", "", "£", "", "€", "").Replace(raw)
	f, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return
	}
	if tracker.Consider(rule.Field, rule.Confidence) {
		assign(f)
	}
}

func availabilityScore(text string) float64 {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "out of stock") || strings.Contains(lower, "unavailable") {
		return 0
	}
	if strings.Contains(lower, "in stock") || strings.Contains(lower, "available") {
		return 1
	}
	return 0.5
}
