package graph

import (
	"sort"

	"rtgraph/graphgen/internal/aggregate"
	"rtgraph/graphgen/internal/record"
	"rtgraph/graphgen/internal/snapshot"
)

// NoCommunity marks a node that has not been assigned to a community
const NoCommunity = -1

// NodeInfo is a lightweight account representation decoupled from table types
type NodeInfo struct {
	ID        string
	Label     string
	Size      int
	BotScore  float64
	Community int
}

// EdgeInfo is a lightweight weighted edge
type EdgeInfo struct {
	ID     string
	Source string
	Target string
	Kind   record.Kind
	Size   int
	Weight float64
}

// Graph is a weighted directed multigraph with precomputed adjacency lists
type Graph struct {
	Nodes  map[string]*NodeInfo
	Edges  []EdgeInfo
	Adj    map[string][]string // undirected
	OutAdj map[string][]string // directed: source -> targets
	InAdj  map[string][]string // directed: target -> sources
}

// New builds a Graph from raw nodes and edges. Edges whose endpoints are
// not among nodes are dropped.
func New(nodes []*NodeInfo, edges []EdgeInfo) *Graph {
	nodeMap := make(map[string]*NodeInfo, len(nodes))
	adj := make(map[string][]string)
	outAdj := make(map[string][]string)
	inAdj := make(map[string][]string)

	for _, n := range nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = nil // ensure entry exists
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
	}

	kept := make([]EdgeInfo, 0, len(edges))
	for _, e := range edges {
		if _, ok := nodeMap[e.Source]; !ok {
			continue
		}
		if _, ok := nodeMap[e.Target]; !ok {
			continue
		}
		kept = append(kept, e)
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)
	}

	return &Graph{
		Nodes:  nodeMap,
		Edges:  kept,
		Adj:    adj,
		OutAdj: outAdj,
		InAdj:  inAdj,
	}
}

// FromTables assembles the graph of a build: one vertex per node-table
// entry, one edge per edge-table entry carrying its computed weight.
func FromTables(edges *aggregate.EdgeTable, nodes *aggregate.NodeTable) *Graph {
	infos := make([]*NodeInfo, 0, nodes.Len())
	for i := range nodes.Entries {
		n := &nodes.Entries[i]
		community := NoCommunity
		if n.CommunityID != nil {
			community = *n.CommunityID
		}
		infos = append(infos, &NodeInfo{
			ID:        n.AccountID,
			Label:     n.Label,
			Size:      n.Size,
			BotScore:  n.BotScore,
			Community: community,
		})
	}
	edgeInfos := make([]EdgeInfo, 0, edges.Len())
	for i := range edges.Entries {
		e := &edges.Entries[i]
		edgeInfos = append(edgeInfos, EdgeInfo{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Kind:   e.Kind,
			Size:   e.Size,
			Weight: e.Weight,
		})
	}
	return New(infos, edgeInfos)
}

// FromSnapshot rebuilds the graph of an exported snapshot
func FromSnapshot(s *snapshot.Snapshot) *Graph {
	infos := make([]*NodeInfo, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		community := NoCommunity
		if n.CommunityID != nil {
			community = *n.CommunityID
		}
		infos = append(infos, &NodeInfo{
			ID:        n.ID,
			Label:     n.Label,
			Size:      n.Size,
			BotScore:  n.BotScore,
			Community: community,
		})
	}
	edgeInfos := make([]EdgeInfo, 0, len(s.Edges))
	for _, e := range s.Edges {
		edgeInfos = append(edgeInfos, EdgeInfo{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Kind:   record.Kind(e.Kind),
			Size:   e.Size,
			Weight: e.Weight,
		})
	}
	return New(infos, edgeInfos)
}

// FilterToCommunity returns a new graph holding only members of community
func (g *Graph) FilterToCommunity(community int) *Graph {
	var filteredNodes []*NodeInfo
	filteredSet := make(map[string]bool)
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Community == community {
			filteredNodes = append(filteredNodes, n)
			filteredSet[id] = true
		}
	}

	var filteredEdges []EdgeInfo
	for _, e := range g.Edges {
		if filteredSet[e.Source] && filteredSet[e.Target] {
			filteredEdges = append(filteredEdges, e)
		}
	}

	return New(filteredNodes, filteredEdges)
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Undirected projects the multigraph onto simple undirected weighted
// adjacency: parallel and reverse edges sum their weights, self loops are dropped.
func (g *Graph) Undirected() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(g.Nodes))
	for id := range g.Nodes {
		out[id] = make(map[string]float64)
	}
	for _, e := range g.Edges {
		if e.Source == e.Target {
			continue
		}
		out[e.Source][e.Target] += e.Weight
		out[e.Target][e.Source] += e.Weight
	}
	return out
}

// Communities returns the node -> community assignment, skipping unassigned nodes
func (g *Graph) Communities() map[string]int {
	out := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		if n.Community != NoCommunity {
			out[id] = n.Community
		}
	}
	return out
}
