package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/mapper"
	"github.com/cortexmap/cortex/internal/navigate"
	"github.com/cortexmap/cortex/internal/service/attemptstore"
	"github.com/cortexmap/cortex/internal/sitemap"
	"github.com/cortexmap/cortex/internal/telemetry"
)

// resolveMap fetches domain's cached Map, or CodeUnknownDomain if no
// mapping attempt for it has ever completed.
func (a *App) resolveMap(domain string) (*sitemap.Map, error) {
	m, ok := a.cache.Get(domain)
	if !ok {
		return nil, cortexerr.Newf(cortexerr.CodeUnknownDomain, "no cached map for domain %q", domain).
			WithRemediation("call map first")
	}
	return m, nil
}

// resolveNode finds the node index whose URL exactly matches raw within m.
func resolveNode(m *sitemap.Map, raw string) (uint32, error) {
	for i, u := range m.URL {
		if u == raw {
			return uint32(i), nil
		}
	}
	return 0, cortexerr.Newf(cortexerr.CodeNodeNotFound, "no node with url %q", raw)
}

// Map runs (or attaches to an in-flight) mapping attempt for req.Domain
// and installs the resulting sealed Map into the cache.
func (a *App) Map(ctx context.Context, req MapRequest) (MapResult, error) {
	start := time.Now()
	lock := a.cache.DomainLock(req.Domain)

	if req.Fresh {
		a.cache.Evict(req.Domain)
	} else if m, ok := a.cache.Get(req.Domain); ok {
		return MapResult{Domain: m.Domain, NodeCount: m.NodeCount, EdgeCount: m.EdgeCount, Partial: m.Partial, MapRef: mapRef(m.Domain)}, nil
	}

	res, err := a.mapper.Map(ctx, mapper.Request{
		Domain:        req.Domain,
		MaxNodes:      req.MaxNodes,
		MaxTimeMs:     req.MaxTimeMs,
		RespectRobots: req.RespectRobots,
		NoBrowser:     req.NoBrowser,
		Fresh:         req.Fresh,
	})

	status := attemptstore.StatusSealed
	if err != nil {
		status = attemptstore.StatusFailed
	} else if res.Partial {
		status = attemptstore.StatusPartialSealed
	}
	attemptID, idErr := a.ids.NewID()
	if idErr != nil {
		attemptID = fmt.Sprintf("%s-%d", req.Domain, start.UnixNano())
	}
	attempt := attemptstore.Attempt{
		Domain:    req.Domain,
		AttemptID: attemptID,
		StartedAt: start,
		EndedAt:   time.Now(),
		Status:    status,
	}
	if err != nil {
		attempt.ErrorText = err.Error()
	} else {
		attempt.NodeCount = res.Map.NodeCount
		attempt.EdgeCount = res.Map.EdgeCount
		if len(res.Bytes) > 0 {
			if digest, hashErr := a.hasher.Hash(res.Bytes); hashErr == nil {
				attempt.BlobSHA256 = digest
			} else {
				a.logger.Warn("hash sealed map bytes failed", zapErr(hashErr))
			}
		}
	}
	if recErr := a.attempts.Record(ctx, attempt); recErr != nil {
		a.logger.Warn("record mapping attempt failed", zapErr(recErr))
	}
	telemetry.ObserveMappingAttempt(string(status), attempt.EndedAt.Sub(start))
	if err != nil {
		return MapResult{}, err
	}

	lock.Lock()
	a.cache.Put(req.Domain, res.Map, int64(len(res.Bytes)))
	lock.Unlock()

	if a.blobs != nil && len(res.Bytes) > 0 {
		go a.persistMap(req.Domain, res.Bytes)
	}

	return MapResult{
		Domain:    res.Map.Domain,
		NodeCount: res.Map.NodeCount,
		EdgeCount: res.Map.EdgeCount,
		Partial:   res.Partial,
		MapRef:    mapRef(res.Map.Domain),
	}, nil
}

func mapRef(domain string) string {
	return fmt.Sprintf("maps/%s.ctx", domain)
}

func (a *App) persistMap(domain string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := a.blobs.PutObject(ctx, mapRef(domain), "application/octet-stream", bytesReader(data)); err != nil {
		a.logger.Warn("persist sealed map failed", zapErr(err))
	}
}

// Query runs the filter operation over domain's cached Map.
func (a *App) Query(_ context.Context, req QueryRequest) (QueryResult, error) {
	m, err := a.resolveMap(req.Domain)
	if err != nil {
		return QueryResult{}, err
	}

	q := navigate.NodeQuery{
		Dimensions: req.Features,
		Flags:      req.Flags,
		SortBy:     -1,
		Limit:      req.Limit,
	}
	if req.PageType != "" {
		pt, err := parsePageType(req.PageType)
		if err != nil {
			return QueryResult{}, err
		}
		q.PageTypes = []sitemap.PageType{pt}
	}
	if req.SortBy != nil {
		q.SortBy = *req.SortBy
	}
	if req.Order == "desc" {
		q.Direction = navigate.SortDescending
	}

	matches := navigate.Filter(m, q)
	out := make([]WireMatch, len(matches))
	for i, mm := range matches {
		out[i] = toWireMatch(mm, false)
	}
	return QueryResult{Matches: out}, nil
}

func parsePageType(s string) (sitemap.PageType, error) {
	for pt := sitemap.PageType(1); pt <= sitemap.PageTypeOther; pt++ {
		if pt.String() == s {
			return pt, nil
		}
	}
	return 0, cortexerr.Newf(cortexerr.CodeBadQuery, "unknown page_type %q", s)
}

// Pathfind runs Dijkstra over domain's cached Map.
func (a *App) Pathfind(_ context.Context, req PathfindRequest) (PathfindResult, error) {
	m, err := a.resolveMap(req.Domain)
	if err != nil {
		return PathfindResult{}, err
	}
	from, err := resolveNode(m, req.From)
	if err != nil {
		return PathfindResult{}, err
	}
	to, err := resolveNode(m, req.To)
	if err != nil {
		return PathfindResult{}, err
	}

	c := navigate.PathConstraints{AvoidFlags: req.AvoidFlags}
	if req.Minimize == "weight" {
		c.Minimize = navigate.MinimizeWeight
	}

	res, err := navigate.Pathfind(m, from, to, c)
	if err != nil {
		return PathfindResult{}, err
	}

	nodes := make([]string, len(res.Nodes))
	for i, idx := range res.Nodes {
		nodes[i] = m.URL[idx]
	}
	return PathfindResult{
		Nodes:           nodes,
		TotalWeight:     res.TotalWeight,
		Hops:            res.Hops,
		RequiredActions: res.RequiredActions,
	}, nil
}

// Similar runs cosine similarity search, optionally against a second
// domain's cached Map for cross-site comparison.
func (a *App) Similar(_ context.Context, req SimilarRequest) (SimilarResult, error) {
	target, err := a.resolveMap(req.Domain)
	if err != nil {
		return SimilarResult{}, err
	}

	k := req.K
	if k <= 0 {
		k = 10
	}

	var matches []navigate.NodeMatch
	switch {
	case req.Source != "" && req.SourceDomain != "" && req.SourceDomain != req.Domain:
		source, err := a.resolveMap(req.SourceDomain)
		if err != nil {
			return SimilarResult{}, err
		}
		idx, err := resolveNode(source, req.Source)
		if err != nil {
			return SimilarResult{}, err
		}
		matches, err = navigate.SimilarToNode(source, idx, target, k)
		if err != nil {
			return SimilarResult{}, err
		}
	case req.Source != "":
		idx, err := resolveNode(target, req.Source)
		if err != nil {
			return SimilarResult{}, err
		}
		matches, err = navigate.SimilarToNode(target, idx, target, k)
		if err != nil {
			return SimilarResult{}, err
		}
	case len(req.GoalVector) == sitemap.FeatureDims:
		var goal [sitemap.FeatureDims]float32
		copy(goal[:], req.GoalVector)
		matches, err = navigate.Similar(target, goal, k)
		if err != nil {
			return SimilarResult{}, err
		}
	case len(req.GoalVector) != 0:
		return SimilarResult{}, cortexerr.Newf(cortexerr.CodeDimensionMismatch,
			"goal_vector has %d dimensions, want %d", len(req.GoalVector), sitemap.FeatureDims)
	default:
		return SimilarResult{}, cortexerr.New(cortexerr.CodeEmptyQuery, "similar requires source or goal_vector")
	}

	out := make([]WireMatch, len(matches))
	for i, mm := range matches {
		out[i] = toWireMatch(mm, true)
	}
	return SimilarResult{Matches: out}, nil
}

// Invoke decodes params for method and dispatches to the matching App
// method, implementing restmirror.Handler so the optional REST mirror can
// reuse the exact same request handling as the local socket transport.
func (a *App) Invoke(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return a.handle(ctx, method, params)
}

// Status reports process and cache introspection.
func (a *App) Status(_ context.Context) StatusResult {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return StatusResult{
		Version:     a.version,
		UptimeMs:    time.Since(a.startedAt).Milliseconds(),
		CachedMaps:  a.cache.Entries(),
		MemoryBytes: mem.HeapAlloc,
	}
}
