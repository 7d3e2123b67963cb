package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/sitemap"
)

func TestClassify_ProductDetailFromURLAndJSONLD(t *testing.T) {
	t.Parallel()

	v := Classify(Signals{
		Path:     "/products/acme-widget",
		JSONLD:   []string{"Product"},
		HasPrice: true,
		FormCount: 1,
	})
	require.Equal(t, sitemap.PageTypeProductDetail, v.PageType)
	require.GreaterOrEqual(t, v.Confidence, float32(minConfidence))
}

func TestClassify_CartHeuristic(t *testing.T) {
	t.Parallel()

	v := Classify(Signals{Path: "/cart", HasCartItem: true})
	require.Equal(t, sitemap.PageTypeCart, v.PageType)
}

func TestClassify_LowConfidenceCollapsesToOther(t *testing.T) {
	t.Parallel()

	v := Classify(Signals{Path: "/some/unremarkable/page"})
	require.Equal(t, sitemap.PageTypeOther, v.PageType)
}

func TestClassify_ErrorStatusWins(t *testing.T) {
	t.Parallel()

	v := Classify(Signals{Path: "/products/widget", HTTPStatus: 404})
	require.Equal(t, sitemap.PageTypeError, v.PageType)
}

func TestClassify_HomeFromRootPathAndWebSiteType(t *testing.T) {
	t.Parallel()

	v := Classify(Signals{JSONLD: []string{"WebSite"}, Path: "/"})
	require.Equal(t, sitemap.PageTypeHome, v.PageType)
}

func TestClassify_APIEndpointPath(t *testing.T) {
	t.Parallel()

	v := Classify(Signals{Path: "/api/v1/products"})
	require.Equal(t, sitemap.PageTypeAPIEndpoint, v.PageType)
}
