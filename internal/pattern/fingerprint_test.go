package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_ShopifyFromHTMLMarker(t *testing.T) {
	t.Parallel()

	got := Fingerprint(Signature{HTML: `<script src="https://cdn.shopify.com/s/files/theme.js"></script>`})
	require.Equal(t, "shopify", got)
}

func TestFingerprint_WooCommerceFromCookie(t *testing.T) {
	t.Parallel()

	got := Fingerprint(Signature{CookieNames: []string{"woocommerce_items_in_cart"}})
	require.Equal(t, "woocommerce", got)
}

func TestFingerprint_GenericWhenNoMarkersMatch(t *testing.T) {
	t.Parallel()

	got := Fingerprint(Signature{HTML: "<html><body>hello</body></html>"})
	require.Equal(t, "generic", got)
}

func TestFingerprint_PicksDominantPlatform(t *testing.T) {
	t.Parallel()

	got := Fingerprint(Signature{
		HTML:        `<div class="shopify-section"></div><script>Shopify.theme</script>`,
		ScriptURLs:  []string{"https://cdn.shopify.com/assets/app.js"},
		CookieNames: []string{"woocommerce_cart_hash"},
	})
	require.Equal(t, "shopify", got)
}
