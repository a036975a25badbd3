package graph

import "sort"

// ArticulationPoint is an account whose removal splits its component
type ArticulationPoint struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Partners int    `json:"partners"`
}

// BridgeEdge is an interaction whose removal splits its component
type BridgeEdge struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
}

// FragileConnection is a pair of communities joined by very few edges
type FragileConnection struct {
	CommunityA int `json:"community_a"`
	CommunityB int `json:"community_b"`
	CrossEdges int `json:"cross_edges"`
}

// BridgeReport contains bridge analysis results
type BridgeReport struct {
	ArticulationPoints []ArticulationPoint `json:"articulation_points"`
	BridgeEdges        []BridgeEdge        `json:"bridge_edges"`
	FragileConnections []FragileConnection `json:"fragile_connections"`
	APCount            int                 `json:"ap_count"`
	BridgeCount        int                 `json:"bridge_count"`
}

// fragileLimit is the largest cross-edge count still reported as fragile
const fragileLimit = 2

// ComputeBridges finds articulation points, bridge edges and fragile
// inter-community connections.
func ComputeBridges(g *Graph) *BridgeReport {
	if len(g.Nodes) == 0 {
		return &BridgeReport{}
	}

	ids := g.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	n := len(ids)
	weights := g.Undirected()
	adj := make([][]int, n)
	for i, id := range ids {
		for nbr := range weights[id] {
			adj[i] = append(adj[i], index[nbr])
		}
		sort.Ints(adj[i])
	}

	disc := make([]int, n)
	low := make([]int, n)
	isAP := make([]bool, n)
	var bridgePairs [][2]int
	clock := 0

	type frame struct{ node, parent, next int }
	for root := 0; root < n; root++ {
		if disc[root] != 0 {
			continue
		}
		clock++
		disc[root], low[root] = clock, clock
		stack := []frame{{root, -1, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			u := top.node
			if top.next < len(adj[u]) {
				v := adj[u][top.next]
				top.next++
				switch {
				case v == top.parent:
				case disc[v] != 0:
					low[u] = min(low[u], disc[v])
				default:
					clock++
					disc[v], low[v] = clock, clock
					if u == root {
						rootChildren++
					}
					stack = append(stack, frame{v, u, 0})
				}
				continue
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			p := stack[len(stack)-1].node
			low[p] = min(low[p], low[u])
			if low[u] > disc[p] {
				bridgePairs = append(bridgePairs, [2]int{p, u})
			}
			if p != root && low[u] >= disc[p] {
				isAP[p] = true
			}
		}
		if rootChildren >= 2 {
			isAP[root] = true
		}
	}

	var aps []ArticulationPoint
	for i, id := range ids {
		if isAP[i] {
			aps = append(aps, ArticulationPoint{ID: id, Label: g.Nodes[id].Label, Partners: len(adj[i])})
		}
	}
	sort.SliceStable(aps, func(i, j int) bool { return aps[i].Partners > aps[j].Partners })

	var bridges []BridgeEdge
	for _, pair := range bridgePairs {
		u, v := ids[pair[0]], ids[pair[1]]
		bridges = append(bridges, BridgeEdge{
			SourceID:    u,
			TargetID:    v,
			SourceLabel: g.Nodes[u].Label,
			TargetLabel: g.Nodes[v].Label,
		})
	}

	return &BridgeReport{
		ArticulationPoints: aps,
		BridgeEdges:        bridges,
		FragileConnections: fragileConnections(g),
		APCount:            len(aps),
		BridgeCount:        len(bridges),
	}
}

func fragileConnections(g *Graph) []FragileConnection {
	type pair struct{ a, b int }
	counts := make(map[pair]int)
	for _, e := range g.Edges {
		ca, cb := g.Nodes[e.Source].Community, g.Nodes[e.Target].Community
		if ca == NoCommunity || cb == NoCommunity || ca == cb {
			continue
		}
		if ca > cb {
			ca, cb = cb, ca
		}
		counts[pair{ca, cb}]++
	}

	var fragile []FragileConnection
	for p, count := range counts {
		if count <= fragileLimit {
			fragile = append(fragile, FragileConnection{CommunityA: p.a, CommunityB: p.b, CrossEdges: count})
		}
	}
	sort.Slice(fragile, func(i, j int) bool {
		if fragile[i].CrossEdges != fragile[j].CrossEdges {
			return fragile[i].CrossEdges < fragile[j].CrossEdges
		}
		if fragile[i].CommunityA != fragile[j].CommunityA {
			return fragile[i].CommunityA < fragile[j].CommunityA
		}
		return fragile[i].CommunityB < fragile[j].CommunityB
	})
	return fragile
}
