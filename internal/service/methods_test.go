package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/hash/sha256"
	"github.com/cortexmap/cortex/internal/id/uuid"
	"github.com/cortexmap/cortex/internal/service/attemptstore"
	"github.com/cortexmap/cortex/internal/sitemap"
)

func testMap(t *testing.T) *sitemap.Map {
	t.Helper()

	pageTypes := []sitemap.PageType{sitemap.PageTypeHome, sitemap.PageTypeProductListing, sitemap.PageTypeProductDetail}
	urls := []string{"https://example.com/", "https://example.com/category", "https://example.com/category/widget"}

	flags := []sitemap.NodeFlags{sitemap.NewNodeFlags(), sitemap.NewNodeFlags(), sitemap.NewNodeFlags()}
	features := make([][sitemap.FeatureDims]float32, 3)
	features[2][sitemap.DimPrice] = 199
	flags[2] = flags[2].Set(sitemap.FlagHasPrice)

	edges := []sitemap.Edge{
		{Target: 1, Weight: 1, Kind: sitemap.EdgeKindLink, ActionRef: sitemap.NoActionRef},
		{Target: 2, Weight: 1, Kind: sitemap.EdgeKindLink, ActionRef: sitemap.NoActionRef},
	}

	return &sitemap.Map{
		Domain:     "example.com",
		NodeCount:  3,
		EdgeCount:  2,
		URL:        urls,
		PageTypes:  pageTypes,
		Confidence: []float32{1, 1, 1},
		Features:   features,
		Flags:      flags,
		EdgeIndex:  []uint32{0, 1, 2, 2},
		Edges:      edges,
	}
}

func testApp(t *testing.T) *App {
	t.Helper()
	return &App{
		logger:   zap.NewNop(),
		version:  "test",
		cache:    NewMapCache(1 << 20),
		attempts: attemptstore.NewMemory(),
		ids:      uuid.NewUUIDGenerator(),
		hasher:   sha256.New(),
	}
}

func TestResolveMap_UnknownDomainReturnsUnknownDomain(t *testing.T) {
	a := testApp(t)
	_, err := a.resolveMap("nope.com")
	require.Error(t, err)
	require.Equal(t, cortexerr.CodeUnknownDomain, cortexerr.CodeOf(err))
}

func TestResolveNode_FindsExactURLMatch(t *testing.T) {
	m := testMap(t)
	idx, err := resolveNode(m, "https://example.com/category/widget")
	require.NoError(t, err)
	require.Equal(t, uint32(2), idx)
}

func TestResolveNode_UnknownURLReturnsNodeNotFound(t *testing.T) {
	m := testMap(t)
	_, err := resolveNode(m, "https://example.com/missing")
	require.Error(t, err)
	require.Equal(t, cortexerr.CodeNodeNotFound, cortexerr.CodeOf(err))
}

func TestParsePageType_RoundTripsEveryCanonicalCode(t *testing.T) {
	for pt := sitemap.PageType(1); pt <= sitemap.PageTypeOther; pt++ {
		got, err := parsePageType(pt.String())
		require.NoError(t, err)
		require.Equal(t, pt, got)
	}
}

func TestParsePageType_RejectsUnknownString(t *testing.T) {
	_, err := parsePageType("NotAType")
	require.Error(t, err)
	require.Equal(t, cortexerr.CodeBadQuery, cortexerr.CodeOf(err))
}

func TestApp_QueryFiltersByPageType(t *testing.T) {
	a := testApp(t)
	m := testMap(t)
	a.cache.Put(m.Domain, m, 1)

	res, err := a.Query(context.Background(), QueryRequest{Domain: "example.com", PageType: "product_detail"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, uint32(2), res.Matches[0].Index)
}

func TestApp_PathfindResolvesURLsToNodesAndBack(t *testing.T) {
	a := testApp(t)
	m := testMap(t)
	a.cache.Put(m.Domain, m, 1)

	res, err := a.Pathfind(context.Background(), PathfindRequest{
		Domain: "example.com",
		From:   "https://example.com/",
		To:     "https://example.com/category/widget",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Hops)
	require.Equal(t, []string{"https://example.com/", "https://example.com/category", "https://example.com/category/widget"}, res.Nodes)
}

func TestApp_SimilarBySourceNodeExcludesNothingButSortsBySimilarity(t *testing.T) {
	a := testApp(t)
	m := testMap(t)
	a.cache.Put(m.Domain, m, 1)

	res, err := a.Similar(context.Background(), SimilarRequest{Domain: "example.com", Source: "https://example.com/category/widget", K: 2})
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	require.NotNil(t, res.Matches[0].Similarity)
}

func TestApp_SimilarRejectsMismatchedGoalVectorLength(t *testing.T) {
	a := testApp(t)
	m := testMap(t)
	a.cache.Put(m.Domain, m, 1)

	_, err := a.Similar(context.Background(), SimilarRequest{Domain: "example.com", GoalVector: []float32{1, 2, 3}})
	require.Error(t, err)
	require.Equal(t, cortexerr.CodeDimensionMismatch, cortexerr.CodeOf(err))
}

func TestApp_StatusReportsCachedMaps(t *testing.T) {
	a := testApp(t)
	m := testMap(t)
	a.cache.Put(m.Domain, m, 500)

	res := a.Status(context.Background())
	require.Equal(t, "test", res.Version)
	require.Len(t, res.CachedMaps, 1)
	require.Equal(t, int64(500), res.CachedMaps[0].SizeBytes)
}
