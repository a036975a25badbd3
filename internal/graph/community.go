package graph

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"rtgraph/graphgen/internal/errs"
)

// Community names a partition-discovery algorithm
type Community string

const (
	CommunityComponents       Community = "components"
	CommunityLabelPropagation Community = "label_propagation"
	CommunityLouvain          Community = "louvain"
)

// CommunityParams tunes a community run
type CommunityParams struct {
	Resolution    float64
	Threshold     float64 // minimum modularity gain for another louvain level
	MaxIterations int
}

// DefaultCommunityParams mirrors the usual louvain defaults
func DefaultCommunityParams() CommunityParams {
	return CommunityParams{Resolution: 1, Threshold: 1e-7, MaxIterations: 100}
}

// Each algorithm produces its own partition shape; detect pairs it with
// the normalization that flattens it to account -> community id.
type communitySpec struct {
	detect func(g *Graph, p CommunityParams) map[string]int
}

var communities = map[Community]communitySpec{
	CommunityComponents: {detect: func(g *Graph, _ CommunityParams) map[string]int {
		return normalizeSets(connectedComponents(g))
	}},
	CommunityLabelPropagation: {detect: func(g *Graph, p CommunityParams) map[string]int {
		return normalizeLabels(labelPropagation(g, p.MaxIterations))
	}},
	CommunityLouvain: {detect: func(g *Graph, p CommunityParams) map[string]int {
		return normalizeFirstLevel(louvainLevels(g, p.Resolution, p.Threshold))
	}},
}

// CommunityNames returns the registered algorithm names, sorted
func CommunityNames() []string {
	names := make([]string, 0, len(communities))
	for c := range communities {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}

// ParseCommunity validates a community algorithm name
func ParseCommunity(name string) (Community, error) {
	c := Community(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := communities[c]; !ok {
		return "", fmt.Errorf("%w: unknown community algorithm %q (known: %s)", errs.ErrConfiguration, name, strings.Join(CommunityNames(), ", "))
	}
	return c, nil
}

// Detect partitions g and returns a community id for every vertex
func (c Community) Detect(g *Graph, p CommunityParams) (map[string]int, error) {
	spec, ok := communities[c]
	if !ok {
		return nil, fmt.Errorf("%w: unknown community algorithm %q", errs.ErrConfiguration, c)
	}
	return spec.detect(g, p), nil
}

// AssignCommunities records partition on the graph's vertices
func (g *Graph) AssignCommunities(partition map[string]int) {
	for id, n := range g.Nodes {
		if c, ok := partition[id]; ok {
			n.Community = c
		} else {
			n.Community = NoCommunity
		}
	}
}

// normalizeSets numbers disjoint sets 0..k-1 ordered by their smallest member
func normalizeSets(sets [][]string) map[string]int {
	ordered := make([][]string, 0, len(sets))
	for _, s := range sets {
		if len(s) == 0 {
			continue
		}
		members := append([]string(nil), s...)
		sort.Strings(members)
		ordered = append(ordered, members)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i][0] < ordered[j][0] })

	out := make(map[string]int)
	for i, members := range ordered {
		for _, id := range members {
			out[id] = i
		}
	}
	return out
}

func normalizeLabels(labels map[string]string) map[string]int {
	groups := make(map[string][]string)
	for id, label := range labels {
		groups[label] = append(groups[label], id)
	}
	sets := make([][]string, 0, len(groups))
	for _, members := range groups {
		sets = append(sets, members)
	}
	return normalizeSets(sets)
}

// normalizeFirstLevel pulls only the finest partition off a level sequence
func normalizeFirstLevel(levels iter.Seq[[][]string]) map[string]int {
	for level := range levels {
		return normalizeSets(level)
	}
	return map[string]int{}
}

func connectedComponents(g *Graph) [][]string {
	uf := NewUnionFind(g.NodeIDs())
	for _, e := range g.Edges {
		uf.Union(e.Source, e.Target)
	}
	return uf.Components()
}

// labelPropagation runs asynchronous weighted label propagation in sorted
// vertex order. A vertex keeps its label while that label is among the
// heaviest in its neighbourhood; other ties go to the smallest label.
func labelPropagation(g *Graph, maxIterations int) map[string]string {
	ids := g.NodeIDs()
	weights := g.Undirected()
	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}
	if maxIterations <= 0 {
		maxIterations = 100
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, id := range ids {
			if len(weights[id]) == 0 {
				continue
			}
			score := make(map[string]float64)
			for nbr, w := range weights[id] {
				score[labels[nbr]] += w
			}
			best, bestScore := "", -1.0
			for label, s := range score {
				if s > bestScore || (s == bestScore && label < best) {
					best, bestScore = label, s
				}
			}
			if current, ok := score[labels[id]]; ok && current == bestScore {
				continue
			}
			labels[id] = best
			changed = true
		}
		if !changed {
			break
		}
	}
	return labels
}

// louvainGraph is the aggregated graph of one louvain level. Vertex i
// stands for the accounts in members[i]; self loops hold intra weight.
type louvainGraph struct {
	members [][]string
	adj     []map[int]float64
}

func (lg *louvainGraph) totalWeight() float64 {
	m := 0.0
	for u, nbrs := range lg.adj {
		for v, w := range nbrs {
			if u <= v {
				m += w
			}
		}
	}
	return m
}

func (lg *louvainGraph) degree(u int) float64 {
	d := 0.0
	for v, w := range lg.adj[u] {
		if v == u {
			d += 2 * w
		} else {
			d += w
		}
	}
	return d
}

func (lg *louvainGraph) partition(community []int) [][]string {
	grouped := make(map[int][]string)
	for u, c := range community {
		grouped[c] = append(grouped[c], lg.members[u]...)
	}
	out := make([][]string, 0, len(grouped))
	for _, members := range grouped {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (lg *louvainGraph) modularity(community []int, m, resolution float64) float64 {
	if m == 0 {
		return 0
	}
	inner := make(map[int]float64)
	tot := make(map[int]float64)
	for u, nbrs := range lg.adj {
		tot[community[u]] += lg.degree(u)
		for v, w := range nbrs {
			if community[u] != community[v] {
				continue
			}
			if u <= v {
				inner[community[u]] += w
			}
		}
	}
	q := 0.0
	for c, d := range tot {
		q += inner[c]/m - resolution*(d/(2*m))*(d/(2*m))
	}
	return q
}

// oneLevel moves vertices between neighbouring communities while the
// modularity gain is positive. It reports whether anything moved.
func (lg *louvainGraph) oneLevel(m, resolution float64) ([]int, bool) {
	n := len(lg.adj)
	community := make([]int, n)
	degrees := make([]float64, n)
	stot := make([]float64, n)
	for u := 0; u < n; u++ {
		community[u] = u
		degrees[u] = lg.degree(u)
		stot[u] = degrees[u]
	}

	improved := false
	for {
		moves := 0
		for u := 0; u < n; u++ {
			best := community[u]
			toCom := make(map[int]float64)
			for v, w := range lg.adj[u] {
				if v != u {
					toCom[community[v]] += w
				}
			}
			deg := degrees[u]
			removeCost := -toCom[best]/m + resolution*(stot[best]-deg)*deg/(2*m*m)
			stot[best] -= deg

			coms := make([]int, 0, len(toCom))
			for c := range toCom {
				coms = append(coms, c)
			}
			sort.Ints(coms)
			bestGain := 0.0
			for _, c := range coms {
				gain := removeCost + toCom[c]/m - resolution*stot[c]*deg/(2*m*m)
				if gain > bestGain {
					bestGain, best = gain, c
				}
			}
			stot[best] += deg
			if best != community[u] {
				community[u] = best
				moves++
			}
		}
		if moves == 0 {
			break
		}
		improved = true
	}
	return community, improved
}

func (lg *louvainGraph) aggregate(community []int) *louvainGraph {
	index := make(map[int]int)
	var members [][]string
	for u, c := range community {
		i, ok := index[c]
		if !ok {
			i = len(members)
			index[c] = i
			members = append(members, nil)
		}
		members[i] = append(members[i], lg.members[u]...)
	}
	adj := make([]map[int]float64, len(members))
	for i := range adj {
		adj[i] = make(map[int]float64)
	}
	for u, nbrs := range lg.adj {
		for v, w := range nbrs {
			cu, cv := index[community[u]], index[community[v]]
			switch {
			case u == v:
				adj[cu][cu] += w
			case u < v:
				if cu == cv {
					adj[cu][cu] += w
				} else {
					adj[cu][cv] += w
					adj[cv][cu] += w
				}
			}
		}
	}
	return &louvainGraph{members: members, adj: adj}
}

// louvainLevels lazily yields increasingly coarse partitions. Iteration
// stops once a level improves modularity by no more than threshold.
func louvainLevels(g *Graph, resolution, threshold float64) iter.Seq[[][]string] {
	return func(yield func([][]string) bool) {
		ids := g.NodeIDs()
		index := make(map[string]int, len(ids))
		lg := &louvainGraph{members: make([][]string, len(ids)), adj: make([]map[int]float64, len(ids))}
		for i, id := range ids {
			index[id] = i
			lg.members[i] = []string{id}
			lg.adj[i] = make(map[int]float64)
		}
		for u, nbrs := range g.Undirected() {
			for v, w := range nbrs {
				lg.adj[index[u]][index[v]] = w
			}
		}

		identity := func(n int) []int {
			c := make([]int, n)
			for i := range c {
				c[i] = i
			}
			return c
		}

		m := lg.totalWeight()
		if m == 0 {
			yield(lg.partition(identity(len(ids))))
			return
		}

		mod := lg.modularity(identity(len(ids)), m, resolution)
		community, _ := lg.oneLevel(m, resolution)
		for {
			if !yield(lg.partition(community)) {
				return
			}
			next := lg.modularity(community, m, resolution)
			if next-mod <= threshold {
				return
			}
			mod = next
			lg = lg.aggregate(community)
			var improved bool
			if community, improved = lg.oneLevel(m, resolution); !improved {
				return
			}
		}
	}
}

// Modularity scores partition over the undirected weighted projection of g
func Modularity(g *Graph, partition map[string]int) float64 {
	weights := g.Undirected()
	m := 0.0
	degree := make(map[string]float64, len(weights))
	for u, nbrs := range weights {
		for v, w := range nbrs {
			degree[u] += w
			if u < v {
				m += w
			}
		}
	}
	if m == 0 {
		return 0
	}
	inner := make(map[int]float64)
	tot := make(map[int]float64)
	for u, nbrs := range weights {
		cu, ok := partition[u]
		if !ok {
			continue
		}
		tot[cu] += degree[u]
		for v, w := range nbrs {
			if cv, ok := partition[v]; ok && cv == cu && u < v {
				inner[cu] += w
			}
		}
	}
	q := 0.0
	for c, d := range tot {
		q += inner[c]/m - (d/(2*m))*(d/(2*m))
	}
	return q
}
