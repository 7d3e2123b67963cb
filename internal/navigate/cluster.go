package navigate

import (
	"sync"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// clusterCacheKey identifies one (Map, k) clustering request; k-means
// results are cached per key rather than folded into the Map in place,
// since Map is documented as safe for concurrent read-only use and
// nothing mutates one after Seal/Open.
type clusterCacheKey struct {
	m *sitemap.Map
	k int
}

var clusterCache sync.Map // clusterCacheKey -> *sitemap.Clusters

// Cluster runs (or returns the cached result of) k-means over m's feature
// vectors with k clusters, assigning every node a ClusterID and producing
// k centroid vectors.
func Cluster(m *sitemap.Map, k int) (*sitemap.Clusters, error) {
	if k <= 0 {
		return nil, cortexerr.New(cortexerr.CodeBadQuery, "k must be positive")
	}
	if int(m.NodeCount) < k {
		return nil, cortexerr.Newf(cortexerr.CodeBadQuery, "cannot form %d clusters from %d nodes", k, m.NodeCount)
	}

	key := clusterCacheKey{m: m, k: k}
	if cached, ok := clusterCache.Load(key); ok {
		return cached.(*sitemap.Clusters), nil
	}

	result := kMeans(m.Features, m.NodeCount, k)
	clusterCache.Store(key, result)
	return result, nil
}
