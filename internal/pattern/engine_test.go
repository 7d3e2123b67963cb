package pattern

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/classify"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestApply_ShopifyPriceOverridesGenericAtLowerConfidence(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<div class="product__price">$19.99</div><div class="price">$5.00</div>`)
	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()

	require.NoError(t, Apply(doc, "shopify", sig, tracker))
	require.True(t, sig.HasPrice)
	require.InDelta(t, 19.99, sig.Price, 0.001)
}

func TestApply_GenericLoginForm(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<form action="/signin"><input type="password"></form>`)
	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()

	require.NoError(t, Apply(doc, "generic", sig, tracker))
	require.True(t, sig.HasLoginForm)
}

func TestApply_AvailabilityText(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<span class="availability">Out of Stock</span>`)
	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()

	require.NoError(t, Apply(doc, "generic", sig, tracker))
	require.Equal(t, 0.0, sig.Availability)
}

func TestApply_NoMatchLeavesSignalsUntouched(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<p>nothing interesting here</p>`)
	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()

	require.NoError(t, Apply(doc, "generic", sig, tracker))
	require.False(t, sig.HasPrice)
	require.False(t, sig.HasLoginForm)
}
