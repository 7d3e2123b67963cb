// Package mapbuilder assembles a sitemap.Map from the partial, arbitrarily
// ordered observations the acquisition pipeline produces per URL, and
// provides the read side (Open) for loading a previously sealed .ctx file
// back off disk: URL deduplication, CSR edge construction, and the final
// sort/seal pass that makes node indices stable.
package mapbuilder

import (
	"fmt"
	"sort"
	"time"

	"github.com/cortexmap/cortex/internal/sitemap"
)

// NodeObservation is what the acquisition pipeline contributes for one URL
// once classification and encoding have run.
type NodeObservation struct {
	URL        string
	PageType   sitemap.PageType
	Confidence float32
	Features   [sitemap.FeatureDims]float32
	Flags      sitemap.NodeFlags
	Actions    []sitemap.Action
}

// EdgeObservation is one directed edge discovered between two URLs, before
// URL-to-index resolution.
type EdgeObservation struct {
	SourceURL      string
	TargetURL      string
	Kind           sitemap.EdgeKind
	Weight         float32
	RequiresAction bool
}

// Builder accumulates node and edge observations for a single domain's
// mapping attempt. It is not safe for concurrent use; callers serialize
// access (the Mapper owns one Builder per attempt and merges pipeline
// results onto it from a single goroutine).
type Builder struct {
	domain  string
	nodes   map[string]NodeObservation
	edges   []EdgeObservation
	partial bool
}

// NewBuilder starts an empty builder for domain.
func NewBuilder(domain string) *Builder {
	return &Builder{
		domain: domain,
		nodes:  make(map[string]NodeObservation),
	}
}

// AddNode records (or overwrites, on a re-observation of the same URL) a
// node's classified, encoded fields.
func (b *Builder) AddNode(obs NodeObservation) {
	b.nodes[obs.URL] = obs
}

// AddEdge records a directed edge; endpoints are resolved to node indices at
// Seal time, and a target URL with no corresponding AddNode call becomes an
// unrendered, estimated node.
func (b *Builder) AddEdge(obs EdgeObservation) {
	b.edges = append(b.edges, obs)
}

// MarkPartial flags the eventual Map as partial=true: the Mapper calls
// this when max_time_ms elapses mid-attempt.
func (b *Builder) MarkPartial() {
	b.partial = true
}

// NodeCount reports how many distinct URLs have been observed so far,
// useful for budget/max_nodes accounting while the pipeline is still
// running.
func (b *Builder) NodeCount() int {
	return len(b.nodes)
}

// Seal assembles the accumulated observations into an immutable,
// CRC-checked Map and its serialized bytes, ready for persistence and
// caching. Seal performs the deterministic ordering, CSR construction, and
// privacy-stripping when requested.
func (b *Builder) Seal(now time.Time, privacyStrip bool) (*sitemap.Map, []byte, error) {
	b.materializeEstimatedTargets()

	urls := make([]string, 0, len(b.nodes))
	for u := range b.nodes {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	index := make(map[string]uint32, len(urls))
	for i, u := range urls {
		index[u] = uint32(i)
	}

	n := len(urls)
	m := &sitemap.Map{
		Domain:          b.domain,
		CreatedAt:       now,
		FormatVersion:   sitemap.CurrentFormatVersion,
		Partial:         b.partial,
		PrivacyStripped: privacyStrip,
		NodeCount:       uint32(n),
		URL:             make([]string, n),
		PageTypes:       make([]sitemap.PageType, n),
		Confidence:      make([]float32, n),
		Features:        make([][sitemap.FeatureDims]float32, n),
		Flags:           make([]sitemap.NodeFlags, n),
		ActionSlice:     make([]sitemap.ActionSlice, n),
	}

	var actions []sitemap.Action
	for i, u := range urls {
		obs := b.nodes[u]
		feat := obs.Features
		if privacyStrip {
			for d := sitemap.SessionDimsStart; d <= sitemap.SessionDimsEnd; d++ {
				feat[d] = 0
			}
		}
		m.URL[i] = u
		m.PageTypes[i] = obs.PageType
		m.Confidence[i] = obs.Confidence
		m.Features[i] = feat
		m.Flags[i] = obs.Flags
		m.ActionSlice[i] = sitemap.ActionSlice{
			Offset: uint32(len(actions)),
			Length: uint32(len(obs.Actions)),
		}
		actions = append(actions, obs.Actions...)
	}
	m.Actions = actions
	m.ActionCount = uint32(len(actions))

	edges, err := resolveEdges(b.edges, index, n)
	if err != nil {
		return nil, nil, err
	}
	m.EdgeIndex = edges.index
	m.Edges = edges.flat
	m.EdgeCount = uint32(len(edges.flat))

	data, err := sitemap.Encode(m)
	if err != nil {
		return nil, nil, fmt.Errorf("seal: encode: %w", err)
	}
	sealed, err := sitemap.Open(data)
	if err != nil {
		return nil, nil, fmt.Errorf("seal: re-open produced invalid map: %w", err)
	}
	sealed.Domain = b.domain
	return sealed, data, nil
}

// materializeEstimatedTargets creates estimated placeholder nodes for every
// edge target URL that was never independently observed, so every edge
// target resolves to a valid node index without requiring every
// acquisition layer to pre-declare the full URL universe.
func (b *Builder) materializeEstimatedTargets() {
	for _, e := range b.edges {
		if _, ok := b.nodes[e.TargetURL]; ok {
			continue
		}
		var feat [sitemap.FeatureDims]float32
		if idx := sitemap.PageTypeOther.OneHotIndex(); idx >= 0 {
			feat[idx] = 1
		}
		b.nodes[e.TargetURL] = NodeObservation{
			URL:        e.TargetURL,
			PageType:   sitemap.PageTypeOther,
			Confidence: 0,
			Features:   feat,
			Flags:      sitemap.NewNodeFlags().Set(sitemap.FlagEstimated),
		}
	}
}

type csrResult struct {
	index []uint32
	flat  []sitemap.Edge
}

// resolveEdges resolves URL-keyed edge observations to node indices,
// dedups per (source,target,kind) keeping the first-seen weight, sorts each
// source's slice by (kind,target) for a deterministic ordering, and builds
// the CSR index.
func resolveEdges(obs []EdgeObservation, index map[string]uint32, nodeCount int) (csrResult, error) {
	type key struct {
		target uint32
		kind   sitemap.EdgeKind
	}
	perSource := make(map[uint32]map[key]sitemap.Edge, nodeCount)

	for _, e := range obs {
		srcIdx, ok := index[e.SourceURL]
		if !ok {
			continue // source never observed as a node; drop (can't happen once materializeEstimatedTargets ran for targets, but sources are only added via AddNode)
		}
		tgtIdx, ok := index[e.TargetURL]
		if !ok {
			return csrResult{}, fmt.Errorf("resolve edges: unresolved target %q", e.TargetURL)
		}
		k := key{target: tgtIdx, kind: e.Kind}
		bucket, ok := perSource[srcIdx]
		if !ok {
			bucket = make(map[key]sitemap.Edge)
			perSource[srcIdx] = bucket
		}
		if _, exists := bucket[k]; exists {
			continue // first-seen wins; duplicate (source,target,kind) collapsed
		}
		weight := e.Weight
		if weight == 0 {
			weight = 1.0
		}
		actionRef := uint8(sitemap.NoActionRef)
		if e.RequiresAction {
			actionRef = 0
		}
		bucket[k] = sitemap.Edge{
			Target:         tgtIdx,
			Weight:         weight,
			Kind:           e.Kind,
			RequiresAction: e.RequiresAction,
			ActionRef:      actionRef,
		}
	}

	edgeIndex := make([]uint32, nodeCount+1)
	var flat []sitemap.Edge
	for u := 0; u < nodeCount; u++ {
		edgeIndex[u] = uint32(len(flat))
		bucket := perSource[uint32(u)]
		ordered := make([]sitemap.Edge, 0, len(bucket))
		for _, e := range bucket {
			ordered = append(ordered, e)
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Kind != ordered[j].Kind {
				return ordered[i].Kind < ordered[j].Kind
			}
			return ordered[i].Target < ordered[j].Target
		})
		flat = append(flat, ordered...)
	}
	edgeIndex[nodeCount] = uint32(len(flat))

	return csrResult{index: edgeIndex, flat: flat}, nil
}
