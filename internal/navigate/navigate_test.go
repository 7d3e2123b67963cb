package navigate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// buildTestMap assembles a tiny 3-level hierarchy by hand: Home -> Category
// -> Product, plus a Login node reachable only from Home, exercising
// pathfinding across multiple hops and branches.
func buildTestMap(t *testing.T) *sitemap.Map {
	t.Helper()

	urls := []string{
		"https://shop.example.com/",             // 0 home
		"https://shop.example.com/category",      // 1 product_listing
		"https://shop.example.com/category/widget", // 2 product_detail
		"https://shop.example.com/login",         // 3 login
	}
	pageTypes := []sitemap.PageType{
		sitemap.PageTypeHome,
		sitemap.PageTypeProductListing,
		sitemap.PageTypeProductDetail,
		sitemap.PageTypeLogin,
	}
	confidence := []float32{0.9, 0.8, 0.95, 0.85}

	var features [][sitemap.FeatureDims]float32
	for _, pt := range pageTypes {
		var f [sitemap.FeatureDims]float32
		if idx := pt.OneHotIndex(); idx >= 0 {
			f[idx] = 1
		}
		features = append(features, f)
	}
	features[2][sitemap.DimPrice] = 199

	flags := []sitemap.NodeFlags{
		sitemap.NewNodeFlags().Set(sitemap.FlagHTTPStatusOK),
		sitemap.NewNodeFlags().Set(sitemap.FlagHTTPStatusOK),
		sitemap.NewNodeFlags().Set(sitemap.FlagHTTPStatusOK).Set(sitemap.FlagHasPrice),
		sitemap.NewNodeFlags().Set(sitemap.FlagHTTPStatusOK).Set(sitemap.FlagAuthRequired),
	}

	// CSR edges: 0->1 (link, w1), 0->3 (link, w1), 1->2 (link, w1).
	edges := []sitemap.Edge{
		{Target: 1, Weight: 1, Kind: sitemap.EdgeKindLink, ActionRef: sitemap.NoActionRef},
		{Target: 3, Weight: 1, Kind: sitemap.EdgeKindLink, ActionRef: sitemap.NoActionRef},
		{Target: 2, Weight: 1, Kind: sitemap.EdgeKindLink, ActionRef: sitemap.NoActionRef},
	}
	edgeIndex := []uint32{0, 2, 3, 3, 3} // node0: [0,2), node1: [2,3), node2/3: empty

	return &sitemap.Map{
		Domain:      "shop.example.com",
		NodeCount:   uint32(len(urls)),
		EdgeCount:   uint32(len(edges)),
		URL:         urls,
		PageTypes:   pageTypes,
		Confidence:  confidence,
		Features:    features,
		Flags:       flags,
		ActionSlice: make([]sitemap.ActionSlice, len(urls)),
		EdgeIndex:   edgeIndex,
		Edges:       edges,
	}
}

func TestFilter_PageTypeReturnsExactSet(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	matches := Filter(m, NodeQuery{PageTypes: []sitemap.PageType{sitemap.PageTypeProductDetail}, SortBy: -1})
	require.Len(t, matches, 1)
	require.Equal(t, uint32(2), matches[0].Index)
}

func TestFilter_DimensionRangeAndLimit(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	lt := float32(300)
	matches := Filter(m, NodeQuery{
		PageTypes:  []sitemap.PageType{sitemap.PageTypeProductDetail},
		Dimensions: map[int]DimensionRange{sitemap.DimPrice: {Lt: &lt}},
		SortBy:     -1,
		Limit:      20,
	})
	require.Len(t, matches, 1)
	require.Less(t, matches[0].FeaturesSubset[sitemap.DimPrice], lt)
}

func TestFilter_NoPageTypeScansEveryNodeInIndexOrder(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	matches := Filter(m, NodeQuery{SortBy: -1})
	require.Len(t, matches, 4)
	for i, match := range matches {
		require.Equal(t, uint32(i), match.Index)
	}
}

func TestPathfind_SameNodeIsZeroHops(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	res, err := Pathfind(m, 0, 0, PathConstraints{})
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, res.Nodes)
	require.Zero(t, res.Hops)
	require.Zero(t, res.TotalWeight)
}

func TestPathfind_ThreeLevelHierarchyTwoHops(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	res, err := Pathfind(m, 0, 2, PathConstraints{Minimize: MinimizeWeight})
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, res.Nodes)
	require.Equal(t, 2, res.Hops)
	require.InDelta(t, 2.0, res.TotalWeight, 0.001)
}

func TestPathfind_UnreachableReturnsNoPath(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	_, err := Pathfind(m, 2, 3, PathConstraints{})
	require.Error(t, err)
	require.True(t, cortexerr.Is(err, cortexerr.CodeNoPath))
}

func TestPathfind_AvoidFlagsPrunesNode(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	_, err := Pathfind(m, 0, 3, PathConstraints{AvoidFlags: []uint{sitemap.FlagAuthRequired}})
	require.Error(t, err)
	require.True(t, cortexerr.Is(err, cortexerr.CodeNoPath))
}

func TestPathfind_UnknownNodeIsNodeNotFound(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	_, err := Pathfind(m, 0, 99, PathConstraints{})
	require.True(t, cortexerr.Is(err, cortexerr.CodeNodeNotFound))
}

func TestSimilar_ReturnsUpToKDistinctNodesSortedDescending(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	goal := m.Features[2] // product_detail's own vector
	matches, err := Similar(m, goal, 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(matches), 2)
	require.Equal(t, uint32(2), matches[0].Index)
	require.InDelta(t, 1.0, matches[0].Similarity, 0.001)
	for i := 1; i < len(matches); i++ {
		require.LessOrEqual(t, matches[i].Similarity, matches[i-1].Similarity)
	}
}

func TestSimilar_RejectsNonPositiveK(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	_, err := Similar(m, m.Features[0], 0)
	require.Error(t, err)
}

func TestSimilarToNode_CrossMapComparison(t *testing.T) {
	t.Parallel()

	source := buildTestMap(t)
	target := buildTestMap(t)
	matches, err := SimilarToNode(source, 2, target, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, uint32(2), matches[0].Index)
}

func TestCluster_AssignsEveryNodeAndCachesResult(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	c1, err := Cluster(m, 2)
	require.NoError(t, err)
	require.Len(t, c1.ClusterID, int(m.NodeCount))
	require.Len(t, c1.Centroid, 2)

	c2, err := Cluster(m, 2)
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestCluster_RejectsMoreClustersThanNodes(t *testing.T) {
	t.Parallel()

	m := buildTestMap(t)
	_, err := Cluster(m, 100)
	require.Error(t, err)
}
