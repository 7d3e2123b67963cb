// Package service hosts the long-lived background process: the Map Cache,
// the Mapper/Navigation request dispatcher, the local request/response
// transport, and (optionally) a REST mirror, wired around a single
// dependency-injection App and a bounded per-connection request queue.
package service

import (
	"encoding/json"
	"errors"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/navigate"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// Envelope is one request or response message on the wire, matching the
// "one request per message" framing the local transport imposes.
type Envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload is the wire shape of a cortexerr.Error.
type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

func errorPayload(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	p := &ErrorPayload{Code: string(cortexerr.CodeOf(err)), Message: err.Error()}
	var cerr *cortexerr.Error
	if errors.As(err, &cerr) {
		p.Remediation = cerr.Remediation
	}
	return p
}

// MapRequest is the map method's params.
type MapRequest struct {
	Domain        string `json:"domain"`
	MaxNodes      int    `json:"max_nodes,omitempty"`
	MaxTimeMs     int64  `json:"max_time_ms,omitempty"`
	RespectRobots bool   `json:"respect_robots,omitempty"`
	NoBrowser     bool   `json:"no_browser,omitempty"`
	Fresh         bool   `json:"fresh,omitempty"`
}

// MapResult is the map method's success shape.
type MapResult struct {
	Domain    string `json:"domain"`
	NodeCount uint32 `json:"node_count"`
	EdgeCount uint32 `json:"edge_count"`
	Partial   bool   `json:"partial"`
	MapRef    string `json:"map_ref"`
}

// QueryRequest is the query (filter) method's params.
type QueryRequest struct {
	Domain   string                            `json:"domain"`
	PageType string                            `json:"page_type,omitempty"`
	Features map[int]navigate.DimensionRange   `json:"features,omitempty"`
	Flags    []uint                            `json:"flags,omitempty"`
	SortBy   *int                              `json:"sort_by,omitempty"`
	Order    string                            `json:"order,omitempty"` // "asc" | "desc"
	Limit    int                               `json:"limit,omitempty"`
}

// QueryResult wraps filter's matches.
type QueryResult struct {
	Matches []WireMatch `json:"matches"`
}

// PathfindRequest is the pathfind method's params.
type PathfindRequest struct {
	Domain     string   `json:"domain"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Minimize   string   `json:"minimize,omitempty"` // "hops" | "weight"
	AvoidFlags []uint   `json:"avoid_flags,omitempty"`
}

// PathfindResult is pathfind's success shape.
type PathfindResult struct {
	Nodes           []string         `json:"nodes"`
	TotalWeight     float64          `json:"total_weight"`
	Hops            int              `json:"hops"`
	RequiredActions []sitemap.Action `json:"required_actions,omitempty"`
}

// SimilarRequest is the similar method's params.
type SimilarRequest struct {
	Domain       string     `json:"domain"`
	Source       string     `json:"source,omitempty"`
	SourceDomain string     `json:"source_domain,omitempty"` // cross-site comparison
	GoalVector   []float32  `json:"goal_vector,omitempty"`
	K            int        `json:"k,omitempty"`
}

// SimilarResult wraps similar's matches.
type SimilarResult struct {
	Matches []WireMatch `json:"matches"`
}

// WireMatch is NodeMatch's JSON wire shape.
type WireMatch struct {
	Index          uint32             `json:"index"`
	URL            string             `json:"url"`
	PageType       string             `json:"page_type"`
	Confidence     float32            `json:"confidence"`
	FeaturesSubset map[int]float32    `json:"features_subset,omitempty"`
	Similarity     *float32           `json:"similarity,omitempty"`
}

func toWireMatch(m navigate.NodeMatch, withSimilarity bool) WireMatch {
	w := WireMatch{
		Index:          m.Index,
		URL:            m.URL,
		PageType:       m.PageType.String(),
		Confidence:     m.Confidence,
		FeaturesSubset: m.FeaturesSubset,
	}
	if withSimilarity {
		sim := m.Similarity
		w.Similarity = &sim
	}
	return w
}

// StatusResult is the status method's success shape.
type StatusResult struct {
	Version     string       `json:"version"`
	UptimeMs    int64        `json:"uptime_ms"`
	CachedMaps  []CachedMap  `json:"cached_maps"`
	MemoryBytes uint64       `json:"memory_bytes"`
}

// CachedMap describes one Map Cache entry in a status response.
type CachedMap struct {
	Domain         string `json:"domain"`
	NodeCount      uint32 `json:"node_count"`
	SizeBytes      int64  `json:"size_bytes"`
	FreshnessAgeMs int64  `json:"freshness_age_ms"`
}
