package apiprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/classify"
	"github.com/cortexmap/cortex/internal/fetch"
)

func TestProbe_ShopifyProductsJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":[{"title":"Widget","variants":[{"price":"24.99","available":true}]}]}`))
	}))
	defer srv.Close()

	fetcher := fetch.New(fetch.Config{}, nil)
	prober := New(fetcher, nil)

	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()
	require.NoError(t, prober.Probe(context.Background(), srv.URL, "shopify", sig, tracker))

	require.True(t, sig.HasPrice)
	require.InDelta(t, 24.99, sig.Price, 0.001)
	require.Equal(t, 1.0, sig.Availability)
}

func TestProbe_WooCommerceStoreProducts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/store/products" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"prices":{"price":"1999","currency_minor_unit":2},"is_in_stock":true,"average_rating":"4.5","review_count":12}]`))
	}))
	defer srv.Close()

	fetcher := fetch.New(fetch.Config{}, nil)
	prober := New(fetcher, nil)

	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()
	require.NoError(t, prober.Probe(context.Background(), srv.URL, "woocommerce", sig, tracker))

	require.True(t, sig.HasPrice)
	require.InDelta(t, 19.99, sig.Price, 0.001)
	require.True(t, sig.HasRating)
	require.InDelta(t, 4.5, sig.Rating, 0.001)
	require.Equal(t, 12, sig.ReviewCount)
}

func TestProbe_UnknownFingerprintNoOp(t *testing.T) {
	t.Parallel()

	fetcher := fetch.New(fetch.Config{}, nil)
	prober := New(fetcher, nil)

	sig := &classify.Signals{}
	tracker := classify.NewFieldConfidence()
	require.NoError(t, prober.Probe(context.Background(), "https://example.com", "generic", sig, tracker))
	require.False(t, sig.HasPrice)
}
