package navigate

import (
	"container/heap"
	"math"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// pqItem is one entry in the Dijkstra priority queue.
type pqItem struct {
	node uint32
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)         { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Pathfind runs Dijkstra over the Map's CSR edge table from "from" to
// "to", honoring PathConstraints.Minimize and AvoidFlags. Returns a
// CodeNoPath error when "to" is unreachable, CodeNodeNotFound when either
// endpoint is out of range.
func Pathfind(m *sitemap.Map, from, to uint32, c PathConstraints) (PathResult, error) {
	if from >= m.NodeCount {
		return PathResult{}, cortexerr.Newf(cortexerr.CodeNodeNotFound, "node %d not found", from)
	}
	if to >= m.NodeCount {
		return PathResult{}, cortexerr.Newf(cortexerr.CodeNodeNotFound, "node %d not found", to)
	}
	if from == to {
		return PathResult{Nodes: []uint32{from}, Hops: 0, TotalWeight: 0}, nil
	}

	avoided := make(map[uint]bool, len(c.AvoidFlags))
	for _, f := range c.AvoidFlags {
		avoided[f] = true
	}
	isAvoided := func(u uint32) bool {
		for bit := range avoided {
			if m.Flags[u].Test(bit) {
				return true
			}
		}
		return false
	}

	dist := make([]float64, m.NodeCount)
	hops := make([]int, m.NodeCount)
	prev := make([]int64, m.NodeCount)
	visited := make([]bool, m.NodeCount)
	for i := range dist {
		dist[i] = math.MaxFloat64
		prev[i] = -1
	}
	dist[from] = 0

	pq := &priorityQueue{{node: from, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == to {
			break
		}

		for _, e := range m.NodeEdges(u) {
			if isAvoided(e.Target) {
				continue
			}
			step := edgeCost(e, c.Minimize)
			nd := dist[u] + step
			if nd < dist[e.Target] {
				dist[e.Target] = nd
				hops[e.Target] = hops[u] + 1
				prev[e.Target] = int64(u)
				heap.Push(pq, pqItem{node: e.Target, dist: nd})
			}
		}
	}

	if !visited[to] {
		return PathResult{}, cortexerr.Newf(cortexerr.CodeNoPath, "no path from node %d to node %d", from, to)
	}

	var path []uint32
	var actions []sitemap.Action
	for cur := int64(to); cur != -1; {
		path = append([]uint32{uint32(cur)}, path...)
		if prev[cur] != -1 {
			for _, e := range m.NodeEdges(uint32(prev[cur])) {
				if e.Target == uint32(cur) && e.RequiresAction {
					if e.ActionRef != sitemap.NoActionRef {
						nodeActs := m.NodeActions(uint32(prev[cur]))
						if int(e.ActionRef) < len(nodeActs) {
							actions = append(actions, nodeActs[e.ActionRef])
						}
					}
					break
				}
			}
		}
		cur = prev[cur]
	}

	return PathResult{
		Nodes:           path,
		TotalWeight:     dist[to],
		Hops:            hops[to],
		RequiredActions: actions,
	}, nil
}

func edgeCost(e sitemap.Edge, minimize Minimize) float64 {
	if minimize == MinimizeHops {
		return 1
	}
	w := float64(e.Weight)
	if w <= 0 {
		w = 1
	}
	return w
}
