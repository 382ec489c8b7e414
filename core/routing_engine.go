package core

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
)

// ErrNoPath is returned by path queries when either endpoint is absent from
// the graph or no route connects them. It is an expected outcome, not a
// failure: callers must check for it before indexing into a path.
var ErrNoPath = errors.New("no path found")

const (
	// DefaultAlpha weighs the SNR term of the arc cost.
	DefaultAlpha = 1.0

	// DefaultBeta weighs the trust term. It must stay large enough that an
	// arc into a BlackholeTrust node (beta/0.01 = 100000 at the default)
	// dwarfs any SNR-driven term, so the minimizer never picks such an arc
	// while a viable detour exists.
	DefaultBeta = 1000.0

	// Cost-formula floors for absent data: an edge with no telemetry is
	// "worst plausible but not infinite", far cheaper than a confirmed
	// adversarial one.
	minCostSNR   = 1.0
	minCostTrust = 0.01

	gridSide  = 5
	gridNodes = gridSide * gridSide
)

// edgeState carries diagnostic attributes on an undirected topology edge.
// Neither field participates in the directed cost search, which always
// recomputes costs from the current ledger and link-state buffer.
type edgeState struct {
	Quality float64 // externally supplied link-quality value, if any
	Weight  float64 // last cached cost from UpdateLinkWeights
}

// RoutingEngine owns the live topology graph and answers path queries under
// two cost models: minimum hop count (baseline) and a trust- and
// SNR-weighted cost (proposed). The graph holds structure only; costs are
// derived from TrustLedger and LinkStateBuffer state at query time so they
// always reflect current trust, never a stale snapshot.
type RoutingEngine struct {
	// Alpha and Beta are the SNR and trust weights of the arc cost
	// formula cost(u→v) = Alpha/snr(u,v) + Beta/trust(v).
	Alpha float64
	Beta  float64

	adj map[int]map[int]*edgeState
}

// NewRoutingEngine creates an engine with the given cost coefficients.
// Non-positive coefficients would let cost computations silently produce
// zero or negative weights, so they are rejected here.
func NewRoutingEngine(alpha, beta float64) (*RoutingEngine, error) {
	if alpha <= 0 || beta <= 0 {
		return nil, fmt.Errorf("routing coefficients must be positive: alpha=%v beta=%v", alpha, beta)
	}
	return &RoutingEngine{
		Alpha: alpha,
		Beta:  beta,
		adj:   make(map[int]map[int]*edgeState),
	}, nil
}

// BuildGraphFromTopology clears the graph and rebuilds it wholesale from
// the provided node positions; incremental patching is deliberately avoided
// so stale edges cannot survive a topology change.
//
// In range mode (gridMode false) an edge is added for every unordered node
// pair within maxRange metres of each other. In grid mode the positions
// must describe exactly 25 nodes with IDs 0..24 arranged as a 5×5 grid;
// edges connect only horizontally and vertically adjacent cells, giving a
// deterministic, distance-independent test topology.
//
// linkQuality optionally attaches a per-link quality value to matching
// edges for diagnostics; it does not influence the cost search.
func (e *RoutingEngine) BuildGraphFromTopology(positions map[int]Vec3, linkQuality map[LinkKey]float64, maxRange float64, gridMode bool) error {
	e.adj = make(map[int]map[int]*edgeState, len(positions))
	for id := range positions {
		e.adj[id] = make(map[int]*edgeState)
	}

	if gridMode {
		if len(positions) != gridNodes {
			return fmt.Errorf("grid mode requires exactly %d nodes, got %d", gridNodes, len(positions))
		}
		for id := 0; id < gridNodes; id++ {
			if _, ok := positions[id]; !ok {
				return fmt.Errorf("grid mode requires node IDs 0..%d, missing %d", gridNodes-1, id)
			}
		}
		for id := 0; id < gridNodes; id++ {
			if col := id % gridSide; col+1 < gridSide {
				e.addEdge(id, id+1, linkQuality)
			}
			if row := id / gridSide; row+1 < gridSide {
				e.addEdge(id, id+gridSide, linkQuality)
			}
		}
		return nil
	}

	ids := make([]int, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if positions[a].DistanceTo(positions[b]) <= maxRange {
				e.addEdge(a, b, linkQuality)
			}
		}
	}
	return nil
}

// GetBaselinePath returns the minimum-hop-count path from source to dest as
// an ordered node sequence, or ErrNoPath when either endpoint is absent or
// unreachable. This is the attacker-naive route: it will happily pass
// through adversarial nodes that sit on the shortest line.
func (e *RoutingEngine) GetBaselinePath(source, dest int) ([]int, error) {
	if err := e.checkEndpoints(source, dest); err != nil {
		return nil, err
	}
	if source == dest {
		return []int{source}, nil
	}

	parent := map[int]int{source: source}
	frontier := []int{source}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, next := range e.Neighbors(current) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			if next == dest {
				return reconstructPath(parent, source, dest), nil
			}
			frontier = append(frontier, next)
		}
	}
	return nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, source, dest)
}

// GetProposedPath returns the minimum-cost path from source to dest under
// the trust- and SNR-weighted cost model, or ErrNoPath when unreachable.
//
// The undirected topology is expanded into a transient directed cost view:
// each edge (u,v) becomes the arcs u→v and v→u, because the cost depends on
// the trust of the arrival node and is therefore direction-dependent. Arc
// costs are non-negative by the SNR and trust floors, so a Dijkstra search
// applies.
func (e *RoutingEngine) GetProposedPath(source, dest int, ledger *TrustLedger, linkState *LinkStateBuffer) ([]int, error) {
	if err := e.checkEndpoints(source, dest); err != nil {
		return nil, err
	}
	if source == dest {
		return []int{source}, nil
	}

	dist := map[int]float64{source: 0}
	parent := map[int]int{source: source}
	done := make(map[int]bool)

	pq := &costQueue{{node: source, cost: 0}}
	for pq.Len() > 0 {
		current := heap.Pop(pq).(costItem)
		if done[current.node] {
			continue
		}
		done[current.node] = true
		if current.node == dest {
			return reconstructPath(parent, source, dest), nil
		}

		for _, next := range e.Neighbors(current.node) {
			if done[next] {
				continue
			}
			candidate := current.cost + e.arcCost(current.node, next, ledger, linkState)
			if best, seen := dist[next]; !seen || candidate < best {
				dist[next] = candidate
				parent[next] = current.node
				heap.Push(pq, costItem{node: next, cost: candidate})
			}
		}
	}
	return nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, source, dest)
}

// UpdateLinkWeights recomputes and caches a weight attribute on every
// undirected edge, using the higher-numbered endpoint as the arrival node.
// The cache exists for inspection and visualization only; the directed
// search always recomputes both directions fresh.
func (e *RoutingEngine) UpdateLinkWeights(ledger *TrustLedger, linkState *LinkStateBuffer) {
	for _, key := range e.Links() {
		e.adj[key.A][key.B].Weight = e.arcCost(key.A, key.B, ledger, linkState)
	}
}

// IsConnected reports whether dest is reachable from source on the current
// undirected topology.
func (e *RoutingEngine) IsConnected(source, dest int) bool {
	_, err := e.GetBaselinePath(source, dest)
	return err == nil
}

// PathThroughBlackhole reports whether any node of the ordered path
// sequence is a member of the adversarial set.
func PathThroughBlackhole(path []int, adversarial map[int]bool) bool {
	for _, node := range path {
		if adversarial[node] {
			return true
		}
	}
	return false
}

// Neighbors returns the node's adjacent nodes in ascending order, for
// deterministic traversal.
func (e *RoutingEngine) Neighbors(node int) []int {
	out := make([]int, 0, len(e.adj[node]))
	for next := range e.adj[node] {
		out = append(out, next)
	}
	sort.Ints(out)
	return out
}

// HasNode reports whether the node is present in the current topology.
func (e *RoutingEngine) HasNode(node int) bool {
	_, ok := e.adj[node]
	return ok
}

// NodeCount returns the number of nodes in the current topology.
func (e *RoutingEngine) NodeCount() int { return len(e.adj) }

// Links returns the canonical keys of all undirected edges, sorted.
func (e *RoutingEngine) Links() []LinkKey {
	out := make([]LinkKey, 0)
	for u, neighbors := range e.adj {
		for v := range neighbors {
			if u < v {
				out = append(out, LinkKey{A: u, B: v})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// LinkCount returns the number of undirected edges.
func (e *RoutingEngine) LinkCount() int {
	total := 0
	for _, neighbors := range e.adj {
		total += len(neighbors)
	}
	return total / 2
}

// LinkWeight returns the cached weight attribute for the a–b edge, if the
// edge exists. The cache is only meaningful after UpdateLinkWeights.
func (e *RoutingEngine) LinkWeight(nodeA, nodeB int) (float64, bool) {
	key := NewLinkKey(nodeA, nodeB)
	st, ok := e.adj[key.A][key.B]
	if !ok {
		return 0, false
	}
	return st.Weight, true
}

// LinkQuality returns the diagnostic quality attribute for the a–b edge,
// if the edge exists.
func (e *RoutingEngine) LinkQuality(nodeA, nodeB int) (float64, bool) {
	key := NewLinkKey(nodeA, nodeB)
	st, ok := e.adj[key.A][key.B]
	if !ok {
		return 0, false
	}
	return st.Quality, true
}

// arcCost computes the directed cost of traversing u→v from current ledger
// and link-state data. Absent or non-positive SNR floors to minCostSNR and
// absent or non-positive trust to minCostTrust, so costs stay positive and
// finite even for links with no telemetry at all.
func (e *RoutingEngine) arcCost(u, v int, ledger *TrustLedger, linkState *LinkStateBuffer) float64 {
	snr := 0.0
	if linkState != nil {
		snr = linkState.GetAverageSNR(u, v)
	}
	if snr <= 0 {
		snr = minCostSNR
	}

	trust := 0.0
	if ledger != nil {
		trust = ledger.GetTrust(v)
	}
	if trust <= 0 {
		trust = minCostTrust
	}

	return e.Alpha/snr + e.Beta/trust
}

// addEdge inserts an undirected edge, both directions sharing one state.
func (e *RoutingEngine) addEdge(a, b int, linkQuality map[LinkKey]float64) {
	st := &edgeState{}
	if q, ok := linkQuality[NewLinkKey(a, b)]; ok {
		st.Quality = q
	}
	if e.adj[a] == nil {
		e.adj[a] = make(map[int]*edgeState)
	}
	if e.adj[b] == nil {
		e.adj[b] = make(map[int]*edgeState)
	}
	e.adj[a][b] = st
	e.adj[b][a] = st
}

func (e *RoutingEngine) checkEndpoints(source, dest int) error {
	if !e.HasNode(source) {
		return fmt.Errorf("%w: source %d not in graph", ErrNoPath, source)
	}
	if !e.HasNode(dest) {
		return fmt.Errorf("%w: destination %d not in graph", ErrNoPath, dest)
	}
	return nil
}

func reconstructPath(parent map[int]int, source, dest int) []int {
	path := []int{dest}
	for node := dest; node != source; node = parent[node] {
		path = append(path, parent[node])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// costItem / costQueue implement the Dijkstra priority queue.
type costItem struct {
	node int
	cost float64
}

type costQueue []costItem

func (q costQueue) Len() int            { return len(q) }
func (q costQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q costQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *costQueue) Push(x interface{}) { *q = append(*q, x.(costItem)) }
func (q *costQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
