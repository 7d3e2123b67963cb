package mapper

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/cortexmap/cortex/internal/discovery"
	"github.com/cortexmap/cortex/internal/mapbuilder"
)

// urlResult is one candidate URL's contribution to the builder: a node
// observation (always present, even on failure — the pipeline degrades to
// an estimated node rather than dropping the URL), its outbound edges, and
// any pipeline error worth aggregating for diagnostics.
type urlResult struct {
	node  mapbuilder.NodeObservation
	edges []mapbuilder.EdgeObservation
	err   error
}

// runFanOut processes every candidate through process with at most
// maxConcurrency in flight at once, bounded by ctx. Each candidate gets
// its own result slot so goroutines never contend over shared state.
func runFanOut(ctx context.Context, maxConcurrency int, candidates []discovery.Candidate, process func(context.Context, discovery.Candidate) urlResult) []urlResult {
	results := make([]urlResult, len(candidates))
	p := pool.New().WithMaxGoroutines(maxConcurrency)
	for i, c := range candidates {
		i, c := i, c
		p.Go(func() {
			if ctx.Err() != nil {
				results[i] = urlResult{node: estimatedNode(c.URL), err: ctx.Err()}
				return
			}
			results[i] = process(ctx, c)
		})
	}
	p.Wait()
	return results
}
