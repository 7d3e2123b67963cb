package pattern

import "strings"

// Signature is the evidence Fingerprint inspects: HTML source, script src
// URLs collected during extraction, and cookie names seen on the response.
type Signature struct {
	HTML        string
	ScriptURLs  []string
	CookieNames []string
}

type marker struct {
	fingerprint string
	needle      string
}

var htmlMarkers = []marker{
	{"shopify", "Shopify.theme"},
	{"shopify", "cdn.shopify.com"},
	{"shopify", "shopify-section"},
	{"woocommerce", "woocommerce"},
	{"woocommerce", "wp-content/plugins/woocommerce"},
	{"magento", "Magento_Theme"},
	{"bigcommerce", "bigcommerce.com"},
}

var cookieMarkers = []marker{
	{"shopify", "_shopify_s"},
	{"shopify", "_shopify_y"},
	{"shopify", "cart_sig"},
	{"woocommerce", "woocommerce_items_in_cart"},
	{"woocommerce", "woocommerce_cart_hash"},
}

var scriptMarkers = []marker{
	{"shopify", "cdn.shopify.com"},
	{"woocommerce", "wp-content/plugins/woocommerce"},
	{"magento", "static/frontend/Magento"},
}

// Fingerprint inspects sig and returns the single best-matching platform
// name, or "generic" when nothing matches. Platforms are checked in a
// fixed order so that a page exhibiting more than one marker resolves
// deterministically rather than depending on map iteration order.
func Fingerprint(sig Signature) string {
	counts := make(map[string]int)
	lowerHTML := strings.ToLower(sig.HTML)
	for _, m := range htmlMarkers {
		if strings.Contains(lowerHTML, strings.ToLower(m.needle)) {
			counts[m.fingerprint]++
		}
	}
	for _, cookie := range sig.CookieNames {
		lc := strings.ToLower(cookie)
		for _, m := range cookieMarkers {
			if strings.Contains(lc, strings.ToLower(m.needle)) {
				counts[m.fingerprint]++
			}
		}
	}
	for _, script := range sig.ScriptURLs {
		ls := strings.ToLower(script)
		for _, m := range scriptMarkers {
			if strings.Contains(ls, strings.ToLower(m.needle)) {
				counts[m.fingerprint]++
			}
		}
	}

	best := "generic"
	bestCount := 0
	for _, name := range []string{"shopify", "woocommerce", "magento", "bigcommerce"} {
		if counts[name] > bestCount {
			best = name
			bestCount = counts[name]
		}
	}
	return best
}
