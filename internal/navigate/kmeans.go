package navigate

import "github.com/cortexmap/cortex/internal/sitemap"

// kmeansMaxIterations bounds Lloyd's algorithm; in practice it converges
// well before this on the feature vectors' scale.
const kmeansMaxIterations = 50

// kMeans clusters feature vectors into k groups with deterministic,
// reproducible seeding: centroids start as the vectors at evenly spaced
// node indices (0, n/k, 2n/k, ...) rather than a random sample, so the
// same Map and k always produce the same clustering. Seeds are not
// checked for distinctness.
func kMeans(features [][sitemap.FeatureDims]float32, nodeCount uint32, k int) *sitemap.Clusters {
	centroids := seedCentroids(features, nodeCount, k)
	assignments := make([]uint32, nodeCount)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for u := uint32(0); u < nodeCount; u++ {
			best := nearestCentroid(features[u], centroids)
			if assignments[u] != uint32(best) {
				assignments[u] = uint32(best)
				changed = true
			}
		}

		sums := make([][sitemap.FeatureDims]float64, k)
		counts := make([]int, k)
		for u := uint32(0); u < nodeCount; u++ {
			c := assignments[u]
			counts[c]++
			for d := 0; d < sitemap.FeatureDims; d++ {
				sums[c][d] += float64(features[u][d])
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // keep the previous centroid rather than dividing by zero
			}
			for d := 0; d < sitemap.FeatureDims; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}

		if !changed {
			break
		}
	}

	return &sitemap.Clusters{ClusterID: assignments, Centroid: centroids}
}

func seedCentroids(features [][sitemap.FeatureDims]float32, nodeCount uint32, k int) [][sitemap.FeatureDims]float32 {
	centroids := make([][sitemap.FeatureDims]float32, k)
	step := nodeCount / uint32(k)
	if step == 0 {
		step = 1
	}
	for c := 0; c < k; c++ {
		idx := uint32(c) * step
		if idx >= nodeCount {
			idx = nodeCount - 1
		}
		centroids[c] = features[idx]
	}
	return centroids
}

func nearestCentroid(v [sitemap.FeatureDims]float32, centroids [][sitemap.FeatureDims]float32) int {
	best, bestDist := 0, squaredDistance(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		d := squaredDistance(v, centroids[c])
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func squaredDistance(a, b [sitemap.FeatureDims]float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return sum
}
