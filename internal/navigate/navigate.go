// Package navigate implements the read-only query layer over a sealed
// sitemap.Map: typed+feature filtering, shortest-path, vector similarity,
// and clustering. Nothing here mutates a Map; every operation takes a
// *sitemap.Map, only reads it, and returns a fresh result.
package navigate

import "github.com/cortexmap/cortex/internal/sitemap"

// DimensionRange bounds one feature dimension; either side may be nil to
// leave that side unbounded.
type DimensionRange struct {
	Lt *float32
	Ge *float32
}

// SortDirection orders filter results ascending or descending on their
// sort dimension.
type SortDirection int

const (
	SortAscending SortDirection = iota
	SortDescending
)

// NodeQuery is filter's input: a typed+feature predicate over a Map plus
// deterministic ordering and a result cap.
type NodeQuery struct {
	PageTypes  []sitemap.PageType         // empty means no page_type restriction
	Dimensions map[int]DimensionRange     // dimension index -> range predicate
	Flags      []uint                     // every listed flag must be set
	SortBy     int                        // dimension index; -1 means node-index order only
	Direction  SortDirection
	Limit      int // 0 means unbounded
}

// NodeMatch is one row of a filter/similar result.
type NodeMatch struct {
	Index          uint32
	URL            string
	PageType       sitemap.PageType
	Confidence     float32
	FeaturesSubset map[int]float32 // populated only for dimensions the caller asked about
	Similarity     float32         // set by similar(), zero otherwise
}

// Minimize selects pathfind's edge-weight function.
type Minimize int

const (
	MinimizeHops Minimize = iota
	MinimizeWeight
)

// PathConstraints is pathfind's input beyond the endpoints.
type PathConstraints struct {
	Minimize   Minimize
	AvoidFlags []uint // a node with any of these flags set is pruned from the search
}

// PathResult is pathfind's success shape.
type PathResult struct {
	Nodes           []uint32
	TotalWeight     float64
	Hops            int
	RequiredActions []sitemap.Action
}
