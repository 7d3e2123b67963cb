package navigate

import (
	"math"
	"sort"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// bruteForceThreshold is the node count below which Similar scans every
// node directly; above it, candidates are narrowed through a coarse
// quantizer first.
const bruteForceThreshold = 10_000

// Similar runs k-nearest-neighbor cosine similarity against goal within
// target. goal may come from a different sealed Map than target (the
// cross-site comparison use case): nothing about cosine similarity over a
// fixed 128-dim layout requires the vectors to share an origin domain.
func Similar(target *sitemap.Map, goal [sitemap.FeatureDims]float32, k int) ([]NodeMatch, error) {
	if k <= 0 {
		return nil, cortexerr.New(cortexerr.CodeEmptyQuery, "k must be positive")
	}

	candidates := candidateNodes(target, goal)

	matches := make([]NodeMatch, 0, len(candidates))
	for _, u := range candidates {
		sim := cosineSimilarity(goal, target.Features[u])
		matches = append(matches, NodeMatch{
			Index:      u,
			URL:        target.URL[u],
			PageType:   target.PageTypes[u],
			Confidence: target.Confidence[u],
			Similarity: sim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Index < matches[j].Index
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// SimilarToNode is a convenience wrapper for the common source_node form
// of similar(): look up the source node's own vector and search target
// (which may be the same Map the source came from, or a different one).
func SimilarToNode(source *sitemap.Map, sourceIdx uint32, target *sitemap.Map, k int) ([]NodeMatch, error) {
	if sourceIdx >= source.NodeCount {
		return nil, cortexerr.Newf(cortexerr.CodeNodeNotFound, "node %d not found", sourceIdx)
	}
	return Similar(target, source.Features[sourceIdx], k)
}

// candidateNodes returns every node index below bruteForceThreshold, and
// a coarse-quantized subset above it: nodes sharing goal's PageType
// one-hot slot or the same price decile (dimension 48), which keeps the
// scan from degrading linearly with graph size on very large Maps while
// still comparing like-with-like pages.
func candidateNodes(target *sitemap.Map, goal [sitemap.FeatureDims]float32) []uint32 {
	if target.NodeCount <= bruteForceThreshold {
		out := make([]uint32, target.NodeCount)
		for i := range out {
			out[i] = uint32(i)
		}
		return out
	}

	goalPageType := dominantOneHot(goal)
	goalDecile := priceDecile(goal[sitemap.DimPrice])

	var out []uint32
	for i := uint32(0); i < target.NodeCount; i++ {
		if target.PageTypes[i] == goalPageType || priceDecile(target.Features[i][sitemap.DimPrice]) == goalDecile {
			out = append(out, i)
		}
	}
	return out
}

func dominantOneHot(v [sitemap.FeatureDims]float32) sitemap.PageType {
	best, bestVal := sitemap.PageTypeOther, float32(0)
	for pt := sitemap.PageTypeHome; pt <= sitemap.PageTypeOther; pt++ {
		idx := pt.OneHotIndex()
		if idx < 0 {
			continue
		}
		if v[idx] > bestVal {
			bestVal, best = v[idx], pt
		}
	}
	return best
}

func priceDecile(price float32) int {
	if price <= 0 {
		return 0
	}
	decile := int(price / 100)
	if decile > 9 {
		decile = 9
	}
	return decile
}

func cosineSimilarity(a, b [sitemap.FeatureDims]float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
