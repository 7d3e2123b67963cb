package action

import "github.com/cortexmap/cortex/internal/sitemap"

// templates holds platform-known endpoints that a generic form walk won't
// surface because the real add-to-cart/search call happens via JS against
// a fixed, well-known path, keyed the same way internal/pattern keys its
// rule table.
var templates = map[string][]sitemap.Action{
	"shopify": {
		{OpcodeCategory: "cart_add", OpcodeVariant: "http_post", SelectorOrEndpoint: "/cart/add.js", BrowserRequired: false,
			ParamsSchema: `{"type":"object","properties":{"id":{"type":"string"},"quantity":{"type":"number"}}}`},
		{OpcodeCategory: "search", OpcodeVariant: "http_get", SelectorOrEndpoint: "/search?q={query}", BrowserRequired: false},
	},
	"woocommerce": {
		{OpcodeCategory: "cart_add", OpcodeVariant: "http_post", SelectorOrEndpoint: "/wp-json/wc/store/cart/add-item", BrowserRequired: false,
			ParamsSchema: `{"type":"object","properties":{"id":{"type":"number"},"quantity":{"type":"number"}}}`},
	},
}

// TemplatesFor returns the platform-known action templates for
// fingerprint, or nil when the platform has none.
func TemplatesFor(fingerprint string) []sitemap.Action {
	return templates[fingerprint]
}
