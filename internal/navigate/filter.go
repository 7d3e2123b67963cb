package navigate

import (
	"sort"
	"sync"

	"github.com/cortexmap/cortex/internal/sitemap"
)

// pageTypeIndex is an inverted list of node indices per PageType, built
// once per sealed Map and reused across every filter call against it.
// Maps are immutable once sealed, so keying the cache on the pointer is
// safe: the index can never go stale underneath a live *sitemap.Map.
type pageTypeIndex map[sitemap.PageType][]uint32

var indexCache sync.Map // *sitemap.Map -> pageTypeIndex

func pageTypeIndexFor(m *sitemap.Map) pageTypeIndex {
	if cached, ok := indexCache.Load(m); ok {
		return cached.(pageTypeIndex)
	}
	idx := make(pageTypeIndex, 16)
	for i, pt := range m.PageTypes {
		idx[pt] = append(idx[pt], uint32(i))
	}
	indexCache.Store(m, idx)
	return idx
}

// Filter implements the filter() operation: page_type set membership,
// per-dimension ranges, flag subset, deterministic ordering, and limit.
func Filter(m *sitemap.Map, q NodeQuery) []NodeMatch {
	var candidates []uint32
	if len(q.PageTypes) > 0 {
		idx := pageTypeIndexFor(m)
		seen := make(map[uint32]bool)
		for _, pt := range q.PageTypes {
			for _, u := range idx[pt] {
				if !seen[u] {
					seen[u] = true
					candidates = append(candidates, u)
				}
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	} else {
		candidates = make([]uint32, m.NodeCount)
		for i := range candidates {
			candidates[i] = uint32(i)
		}
	}

	matches := make([]NodeMatch, 0, len(candidates))
	for _, u := range candidates {
		if !nodePasses(m, u, q) {
			continue
		}
		matches = append(matches, matchFor(m, u, q))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if q.SortBy >= 0 {
			vi, vj := matches[i].FeaturesSubset[q.SortBy], matches[j].FeaturesSubset[q.SortBy]
			if vi != vj {
				if q.Direction == SortDescending {
					return vi > vj
				}
				return vi < vj
			}
		}
		return matches[i].Index < matches[j].Index
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches
}

func nodePasses(m *sitemap.Map, u uint32, q NodeQuery) bool {
	for _, bit := range q.Flags {
		if !m.Flags[u].Test(bit) {
			return false
		}
	}
	feat := m.Features[u]
	for dim, rng := range q.Dimensions {
		if dim < 0 || dim >= sitemap.FeatureDims {
			continue
		}
		v := feat[dim]
		if rng.Lt != nil && !(v < *rng.Lt) {
			return false
		}
		if rng.Ge != nil && !(v >= *rng.Ge) {
			return false
		}
	}
	return true
}

func matchFor(m *sitemap.Map, u uint32, q NodeQuery) NodeMatch {
	subset := make(map[int]float32, len(q.Dimensions)+1)
	for dim := range q.Dimensions {
		subset[dim] = m.Features[u][dim]
	}
	if q.SortBy >= 0 {
		subset[q.SortBy] = m.Features[u][q.SortBy]
	}
	return NodeMatch{
		Index:          u,
		URL:            m.URL[u],
		PageType:       m.PageTypes[u],
		Confidence:     m.Confidence[u],
		FeaturesSubset: subset,
	}
}
