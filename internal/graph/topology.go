package graph

import "sort"

// HubNode is an account with many distinct interaction partners
type HubNode struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
	Size      int    `json:"size"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CommunitySummary describes one detected community
type CommunitySummary struct {
	ID      int    `json:"id"`
	Members int    `json:"members"`
	Edges   int    `json:"internal_edges"`
	Leader  string `json:"leader"` // largest member by size
}

// TopologyReport contains topology analysis results
type TopologyReport struct {
	TotalNodes        int                `json:"total_nodes"`
	TotalEdges        int                `json:"total_edges"`
	NumComponents     int                `json:"num_components"`
	LargestComponent  int                `json:"largest_component"`
	SmallestComponent int                `json:"smallest_component"`
	OrphanCount       int                `json:"orphan_count"`
	OrphanIDs         []string           `json:"orphan_ids"`
	DegreeHistogram   []DegreeBucket     `json:"degree_histogram"`
	Hubs              []HubNode          `json:"hubs"`
	Communities       []CommunitySummary `json:"communities"`
	Modularity        float64            `json:"modularity"`
}

// ComputeTopology reports components, orphans, degree distribution, hubs
// and the community structure already assigned to g.
func ComputeTopology(g *Graph, hubThreshold, topN int) *TopologyReport {
	if len(g.Nodes) == 0 {
		return &TopologyReport{DegreeHistogram: defaultHistogram()}
	}

	nodeIDs := g.NodeIDs()
	components := connectedComponents(g)
	largest, smallest := 0, len(nodeIDs)
	for _, c := range components {
		largest = max(largest, len(c))
		smallest = min(smallest, len(c))
	}

	// Degree counts distinct partners; parallel edges of different kinds collapse
	distinct := make(map[string]int, len(nodeIDs))
	for id, nbrs := range g.Undirected() {
		distinct[id] = len(nbrs)
	}

	var orphans []string
	buckets := [7]int{}
	var hubs []HubNode
	for _, id := range nodeIDs {
		degree := distinct[id]
		buckets[degreeBucket(degree)]++
		if degree == 0 {
			orphans = append(orphans, id)
		}
		if degree > hubThreshold {
			n := g.Nodes[id]
			hubs = append(hubs, HubNode{
				ID:        id,
				Label:     n.Label,
				Degree:    degree,
				InDegree:  len(g.InAdj[id]),
				OutDegree: len(g.OutAdj[id]),
				Size:      n.Size,
			})
		}
	}
	orphanCount := len(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}
	histogram := defaultHistogram()
	for i := range histogram {
		histogram[i].Count = buckets[i]
	}
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}

	partition := g.Communities()
	return &TopologyReport{
		TotalNodes:        len(nodeIDs),
		TotalEdges:        len(g.Edges),
		NumComponents:     len(components),
		LargestComponent:  largest,
		SmallestComponent: smallest,
		OrphanCount:       orphanCount,
		OrphanIDs:         orphans,
		DegreeHistogram:   histogram,
		Hubs:              hubs,
		Communities:       summarizeCommunities(g, partition),
		Modularity:        Modularity(g, partition),
	}
}

func summarizeCommunities(g *Graph, partition map[string]int) []CommunitySummary {
	byID := make(map[int]*CommunitySummary)
	for _, id := range g.NodeIDs() {
		c, ok := partition[id]
		if !ok {
			continue
		}
		s := byID[c]
		if s == nil {
			s = &CommunitySummary{ID: c}
			byID[c] = s
		}
		s.Members++
		if s.Leader == "" || g.Nodes[id].Size > g.Nodes[s.Leader].Size {
			s.Leader = id
		}
	}
	for _, e := range g.Edges {
		cs, okS := partition[e.Source]
		ct, okT := partition[e.Target]
		if okS && okT && cs == ct {
			byID[cs].Edges++
		}
	}
	out := make([]CommunitySummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Members != out[j].Members {
			return out[i].Members > out[j].Members
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
