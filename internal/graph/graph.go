// Package graph implements the call-graph assembler (C7): it turns resolved
// call edges into a directed multigraph of callable nodes, detects entry
// points (zero inbound edges), and computes tree size via cycle-safe DFS.
package graph

import "github.com/CRJFisher/ariadne-sub017/internal/store"

// Node is one callable definition participating in the call graph.
type Node struct {
	Symbol *store.Symbol
}

// Edge is one caller-callee relationship, with its call site. CalleeID is ""
// for a dangling edge (§4.7): the call site resolved to nothing, but the
// call itself is kept as a node-less edge rather than dropped.
type Edge struct {
	CallerID string
	CalleeID string
	FilePath string
	Line     int
	Col      int
}

// Dangling reports whether e has no resolved callee.
func (e Edge) Dangling() bool { return e.CalleeID == "" }

// Graph is an immutable snapshot of the project's call graph, bulk-loaded
// once so BFS/DFS traversal never issues another query (mirrors the
// bulk-adjacency pattern used for the spec's §5 project registry).
type Graph struct {
	nodes    map[string]*Node
	forward  map[string][]Edge // caller -> outbound edges
	reverse  map[string][]Edge // callee -> inbound edges
	treeSize map[string]int    // memoized per snapshot, §4.7 "cached per snapshot"
}

const maxTraversalDepth = 100

var callableKinds = map[string]bool{"function": true, "method": true, "constructor": true}

// Build bulk-loads every callable symbol and call edge from st into a fresh
// Graph. A Graph is a read-only view of one moment in the store; it must be
// rebuilt after further resolution (e.g. resolve.Project) to pick up changes.
func Build(st *store.Store) (*Graph, error) {
	symbols, err := st.AllSymbols()
	if err != nil {
		return nil, err
	}
	edges, err := st.AllCallEdges()
	if err != nil {
		return nil, err
	}
	files, err := st.AllFiles()
	if err != nil {
		return nil, err
	}
	filePaths := make(map[int64]string, len(files))
	for _, f := range files {
		filePaths[f.ID] = f.Path
	}

	g := &Graph{
		nodes:    make(map[string]*Node),
		forward:  make(map[string][]Edge),
		reverse:  make(map[string][]Edge),
		treeSize: make(map[string]int),
	}
	for _, sym := range symbols {
		if !callableKinds[sym.Kind] {
			continue
		}
		g.nodes[sym.ID] = &Node{Symbol: sym}
	}
	for _, e := range edges {
		var calleeID string
		if e.CalleeSymbolID != nil {
			calleeID = *e.CalleeSymbolID
		}
		edge := Edge{CallerID: e.CallerSymbolID, CalleeID: calleeID, FilePath: filePaths[e.FileID], Line: e.Line, Col: e.Col}
		g.forward[e.CallerSymbolID] = append(g.forward[e.CallerSymbolID], edge)
		if edge.Dangling() {
			// No callee node to index against; the caller's forward
			// adjacency is still the one true record of this call site.
			continue
		}
		g.reverse[calleeID] = append(g.reverse[calleeID], edge)
	}
	return g, nil
}

// Node returns the callable node for id, or nil if id is not a callable
// symbol (or does not exist).
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// EntryPoints returns every callable node with zero inbound resolved edges
// (§4.7's entry-point predicate; dead-node gating is a consumer concern, P6).
func (g *Graph) EntryPoints() []*Node {
	var out []*Node
	for id, n := range g.nodes {
		if len(g.reverse[id]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// TreeSize returns the count of distinct callable SymbolIds reachable from id
// via resolved call edges, not including id itself (§4.7, P7). DFS marks
// each node visited exactly once -- unvisited -> visited is this
// implementation's collapse of the spec's unvisited/in_progress/computed
// machine, since a single visited set already makes a back-edge to any
// ancestor or already-explored node contribute zero. Memoized per Graph.
func (g *Graph) TreeSize(id string) int {
	if size, ok := g.treeSize[id]; ok {
		return size
	}
	visited := map[string]bool{id: true}
	reached := make(map[string]bool)
	var dfs func(string)
	dfs = func(cur string) {
		for _, edge := range g.forward[cur] {
			if edge.Dangling() || visited[edge.CalleeID] {
				continue
			}
			visited[edge.CalleeID] = true
			reached[edge.CalleeID] = true
			dfs(edge.CalleeID)
		}
	}
	dfs(id)
	size := len(reached)
	g.treeSize[id] = size
	return size
}

// TransitiveCallers walks the reverse adjacency map breadth-first up to
// maxDepth hops (capped at 100, mirroring §4.7's transitive queries), and
// returns the reachable nodes annotated with BFS depth, plus the edges that
// connect them. id itself is not included in the returned nodes.
func (g *Graph) TransitiveCallers(id string, maxDepth int) ([]*Node, []Edge) {
	return g.transitive(id, maxDepth, true)
}

// TransitiveCallees is TransitiveCallers' forward-direction counterpart.
func (g *Graph) TransitiveCallees(id string, maxDepth int) ([]*Node, []Edge) {
	return g.transitive(id, maxDepth, false)
}

func (g *Graph) transitive(id string, maxDepth int, reverse bool) ([]*Node, []Edge) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > maxTraversalDepth {
		maxDepth = maxTraversalDepth
	}
	adjacency := g.forward
	if reverse {
		adjacency = g.reverse
	}

	visited := map[string]int{id: 0}
	type entry struct {
		id    string
		depth int
	}
	queue := []entry{{id: id, depth: 0}}
	var edgesOut []Edge
	edgeSeen := make(map[Edge]bool)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range adjacency[cur.id] {
			if !edgeSeen[edge] {
				edgeSeen[edge] = true
				edgesOut = append(edgesOut, edge)
			}
			if !reverse && edge.Dangling() {
				continue // no callee node to enqueue, but the edge itself is still reported
			}
			neighbor := edge.CalleeID
			if reverse {
				neighbor = edge.CallerID
			}
			if _, seen := visited[neighbor]; !seen {
				visited[neighbor] = cur.depth + 1
				queue = append(queue, entry{id: neighbor, depth: cur.depth + 1})
			}
		}
	}

	nodes := make([]*Node, 0, len(visited))
	for nid := range visited {
		if nid == id {
			continue
		}
		if n := g.nodes[nid]; n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, edgesOut
}

// HotspotResult ranks a symbol by how heavily it participates in the call
// graph, grounded in the fan-in/fan-out ranking a project registry consumer
// needs to triage where to look first.
type HotspotResult struct {
	Symbol      *store.Symbol
	CallerCount int // direct callers (fan-in)
	CalleeCount int // direct callees (fan-out)
}

// Hotspots returns the topN callable nodes ranked by inbound edge count
// (fan-in) descending.
func (g *Graph) Hotspots(topN int) []*HotspotResult {
	if topN <= 0 {
		return []*HotspotResult{}
	}
	out := make([]*HotspotResult, 0, len(g.nodes))
	for id, n := range g.nodes {
		out = append(out, &HotspotResult{Symbol: n.Symbol, CallerCount: len(g.reverse[id]), CalleeCount: len(g.forward[id])})
	}
	sortHotspots(out)
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func sortHotspots(hs []*HotspotResult) {
	for i := 1; i < len(hs); i++ {
		for j := i; j > 0 && hs[j-1].CallerCount < hs[j].CallerCount; j-- {
			hs[j-1], hs[j] = hs[j], hs[j-1]
		}
	}
}

// UnusedSymbols returns callable nodes with zero inbound call edges and zero
// resolved references of any kind, excluding the project's detected entry
// points -- additive analytics per the registry's resolved_references table.
func UnusedSymbols(st *store.Store, g *Graph) ([]*store.Symbol, error) {
	resolved, err := st.AllResolvedReferences()
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(resolved))
	for _, rr := range resolved {
		referenced[rr.TargetSymbolID] = true
	}
	var out []*store.Symbol
	for id, n := range g.nodes {
		if referenced[id] {
			continue
		}
		if len(g.reverse[id]) > 0 {
			continue
		}
		out = append(out, n.Symbol)
	}
	return out, nil
}
