package graph

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"rtgraph/graphgen/internal/aggregate"
	"rtgraph/graphgen/internal/errs"
	"rtgraph/graphgen/internal/record"
)

// quickGraph builds a graph with unit-weight repost edges
func quickGraph(nodeIDs []string, edges [][2]string) *Graph {
	var nodes []*NodeInfo
	for _, id := range nodeIDs {
		nodes = append(nodes, &NodeInfo{ID: id, Label: "@" + id, Size: 1, BotScore: record.BotScoreNotComputed, Community: NoCommunity})
	}
	var edgeInfos []EdgeInfo
	for i, e := range edges {
		edgeInfos = append(edgeInfos, EdgeInfo{
			ID: fmt.Sprintf("edge_%d", i), Source: e[0], Target: e[1],
			Kind: record.KindRepost, Size: 1, Weight: 1,
		})
	}
	return New(nodes, edgeInfos)
}

// twoTriangles is two dense clusters joined by a single C-D edge
func twoTriangles() *Graph {
	return quickGraph(
		[]string{"A", "B", "C", "D", "E", "F"},
		[][2]string{
			{"A", "B"}, {"B", "C"}, {"C", "A"},
			{"D", "E"}, {"E", "F"}, {"F", "D"},
			{"C", "D"},
		},
	)
}

// weakBridge is twoTriangles with a light C-D edge
func weakBridge() *Graph {
	g := twoTriangles()
	for i := range g.Edges {
		if g.Edges[i].Source == "C" && g.Edges[i].Target == "D" {
			g.Edges[i].Weight = 0.1
		}
	}
	return g
}

// --- Assembly ---

func TestNew_DropsDanglingEdges(t *testing.T) {
	g := quickGraph([]string{"A", "B"}, [][2]string{{"A", "B"}, {"A", "ghost"}})
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	if len(g.OutAdj["A"]) != 1 || len(g.InAdj["B"]) != 1 {
		t.Errorf("adjacency not built: out=%v in=%v", g.OutAdj["A"], g.InAdj["B"])
	}
}

func TestUndirected_SumsParallelEdges(t *testing.T) {
	g := quickGraph([]string{"A", "B"}, [][2]string{{"A", "B"}, {"B", "A"}, {"A", "A"}})
	u := g.Undirected()
	if u["A"]["B"] != 2 || u["B"]["A"] != 2 {
		t.Errorf("expected summed weight 2, got %v / %v", u["A"]["B"], u["B"]["A"])
	}
	if _, ok := u["A"]["A"]; ok {
		t.Error("self loops should be dropped")
	}
}

func TestFromTables(t *testing.T) {
	community := 3
	edges := &aggregate.EdgeTable{Entries: []aggregate.Edge{
		{ID: "edge_0", Source: "1", Target: "2", Kind: record.KindRepost, Size: 2, Weight: 0.75},
	}}
	nodes := &aggregate.NodeTable{Entries: []aggregate.Node{
		{AccountID: "1", Label: "@one", Size: 2, BotScore: 0.1, CommunityID: &community},
		{AccountID: "2", Label: "@two", Size: 5, BotScore: record.BotScoreNotComputed},
	}}
	g := FromTables(edges, nodes)
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("expected 2 nodes / 1 edge, got %d / %d", len(g.Nodes), len(g.Edges))
	}
	if g.Nodes["1"].Community != 3 || g.Nodes["2"].Community != NoCommunity {
		t.Errorf("communities not carried: %d %d", g.Nodes["1"].Community, g.Nodes["2"].Community)
	}
	if g.Edges[0].Weight != 0.75 {
		t.Errorf("weight not carried: %v", g.Edges[0].Weight)
	}
}

func TestFilterToCommunity(t *testing.T) {
	g := twoTriangles()
	g.AssignCommunities(map[string]int{"A": 0, "B": 0, "C": 0, "D": 1, "E": 1, "F": 1})
	sub := g.FilterToCommunity(0)
	if len(sub.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(sub.Nodes))
	}
	if len(sub.Edges) != 3 {
		t.Errorf("expected the 3 triangle edges, got %d", len(sub.Edges))
	}
}

// --- Weights ---

func TestComputeWeights(t *testing.T) {
	tbl := &aggregate.EdgeTable{Entries: []aggregate.Edge{
		{Source: "A", Target: "B", Size: 2},
		{Source: "C", Target: "B", Size: 1},
		{Source: "B", Target: "A", Size: 4},
	}}
	ComputeWeights(tbl, 0.5)

	// in(A)=4, in(B)=3, in(C)=0, maxSize=4
	want := []float64{
		0.5*(1.0/7) + 0.5*(2.0/4),
		0.5*(1.0/3) + 0.5*(1.0/4),
		0.5*(1.0/7) + 0.5*(4.0/4),
	}
	for i, w := range want {
		if math.Abs(tbl.Entries[i].Weight-w) > 1e-9 {
			t.Errorf("edge %d: weight=%v, want %v", i, tbl.Entries[i].Weight, w)
		}
	}
}

func TestComputeWeights_ZeroDenominators(t *testing.T) {
	tbl := &aggregate.EdgeTable{Entries: []aggregate.Edge{{Source: "A", Target: "B", Size: 0}}}
	ComputeWeights(tbl, 0.5)
	if tbl.Entries[0].Weight != 0 {
		t.Errorf("expected 0 weight, got %v", tbl.Entries[0].Weight)
	}
}

func TestComputeWeights_AlphaExtremes(t *testing.T) {
	tbl := &aggregate.EdgeTable{Entries: []aggregate.Edge{
		{Source: "A", Target: "B", Size: 1},
		{Source: "A", Target: "C", Size: 3},
	}}
	ComputeWeights(tbl, 0)
	if tbl.Entries[1].Weight != 1 || math.Abs(tbl.Entries[0].Weight-1.0/3) > 1e-9 {
		t.Errorf("alpha=0 should be pure volume, got %v %v", tbl.Entries[0].Weight, tbl.Entries[1].Weight)
	}
	ComputeWeights(tbl, 1)
	if tbl.Entries[0].Weight != 1 || math.Abs(tbl.Entries[1].Weight-1.0/3) > 1e-9 {
		t.Errorf("alpha=1 should be pure rarity, got %v %v", tbl.Entries[0].Weight, tbl.Entries[1].Weight)
	}
}

// --- Layouts ---

func TestParseLayout(t *testing.T) {
	for _, name := range LayoutNames() {
		if _, err := ParseLayout(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if l, err := ParseLayout(" Spring "); err != nil || l != LayoutSpring {
		t.Errorf("expected case-insensitive match, got %q %v", l, err)
	}
	if _, err := ParseLayout("kamada"); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLayoutDimensions(t *testing.T) {
	cases := []struct {
		layout Layout
		dim    int
		ok     bool
	}{
		{LayoutSpring, 2, true},
		{LayoutSpring, 3, true},
		{LayoutRandom, 3, true},
		{LayoutCircular, 3, false},
		{LayoutShell, 3, false},
		{LayoutSpiral, 2, true},
		{LayoutSpectral, 3, true},
		{LayoutSpring, 4, false},
	}
	for _, c := range cases {
		err := c.layout.Validate(c.dim)
		if c.ok && err != nil {
			t.Errorf("%s/%d: unexpected error %v", c.layout, c.dim, err)
		}
		if !c.ok && !errors.Is(err, errs.ErrConfiguration) {
			t.Errorf("%s/%d: expected ErrConfiguration, got %v", c.layout, c.dim, err)
		}
	}
}

func TestLayouts_PlaceEveryVertex(t *testing.T) {
	g := twoTriangles()
	for _, name := range LayoutNames() {
		l := Layout(name)
		pos, err := l.Place(g, 2)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(pos) != len(g.Nodes) {
			t.Errorf("%s: placed %d of %d vertices", name, len(pos), len(g.Nodes))
		}
		for id, c := range pos {
			if len(c) != 2 {
				t.Errorf("%s: %s has %d coordinates", name, id, len(c))
			}
			for _, x := range c {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					t.Errorf("%s: %s has non-finite coordinate %v", name, id, c)
				}
			}
		}
	}
}

func TestSpringLayout_DeterministicAnd3D(t *testing.T) {
	g := twoTriangles()
	a, err := LayoutSpring.Place(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := LayoutSpring.Place(g, 3)
	for id := range a {
		if len(a[id]) != 3 {
			t.Fatalf("expected 3 coordinates for %s", id)
		}
		for d := range a[id] {
			if a[id][d] != b[id][d] {
				t.Errorf("%s: layout not deterministic: %v vs %v", id, a[id], b[id])
			}
		}
	}
}

func TestSpringLayout_ClustersStayTogether(t *testing.T) {
	g := twoTriangles()
	pos, _ := LayoutSpring.Place(g, 2)
	dist := func(u, v string) float64 { return norm(sub(pos[u], pos[v])) }
	if dist("A", "B") >= dist("A", "F") {
		t.Errorf("A should sit closer to B (%v) than to F (%v)", dist("A", "B"), dist("A", "F"))
	}
}

func TestSpectralLayout_PathIsOrdered(t *testing.T) {
	g := quickGraph(
		[]string{"A", "B", "C", "D", "E"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "E"}},
	)
	pos, err := LayoutSpectral.Place(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	x := func(id string) float64 { return pos[id][0] }
	increasing := x("A") < x("B") && x("B") < x("C") && x("C") < x("D") && x("D") < x("E")
	decreasing := x("A") > x("B") && x("B") > x("C") && x("C") > x("D") && x("D") > x("E")
	if !increasing && !decreasing {
		t.Errorf("path vertices should be monotone along the first axis, got %v", pos)
	}
	if math.Abs(x("C")) > 1e-6 {
		t.Errorf("middle of the path should sit at the origin, got %v", x("C"))
	}
}

func TestSpectralLayout_SeparatesClusters(t *testing.T) {
	g := twoTriangles()
	pos, err := LayoutSpectral.Place(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	for id, c := range pos {
		if len(c) != 3 {
			t.Fatalf("expected 3 coordinates for %s, got %v", id, c)
		}
	}
	side := func(id string) bool { return pos[id][0] > 0 }
	for _, id := range []string{"B", "C"} {
		if side(id) != side("A") {
			t.Errorf("%s should share A's side, got %v", id, pos)
		}
	}
	for _, id := range []string{"D", "E", "F"} {
		if side(id) == side("A") {
			t.Errorf("%s should sit opposite A, got %v", id, pos)
		}
	}
	if math.Abs(pos["A"][0]-pos["B"][0]) > 1e-6 {
		t.Errorf("A and B are interchangeable and should share a first coordinate, got %v %v", pos["A"], pos["B"])
	}
}

func TestLayout_SingleVertex(t *testing.T) {
	g := quickGraph([]string{"solo"}, nil)
	for _, name := range LayoutNames() {
		pos, err := Layout(name).Place(g, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(pos["solo"]) != 2 {
			t.Errorf("%s: expected solo vertex placed, got %v", name, pos)
		}
	}
}

// --- Communities ---

func TestParseCommunity(t *testing.T) {
	if _, err := ParseCommunity("infomap"); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if c, err := ParseCommunity("LOUVAIN"); err != nil || c != CommunityLouvain {
		t.Errorf("expected louvain, got %q %v", c, err)
	}
}

func TestCommunities_SeparateClusters(t *testing.T) {
	g := weakBridge()
	for _, c := range []Community{CommunityLouvain, CommunityLabelPropagation} {
		partition, err := c.Detect(g, DefaultCommunityParams())
		if err != nil {
			t.Fatalf("%s: %v", c, err)
		}
		if len(partition) != 6 {
			t.Fatalf("%s: expected every vertex assigned, got %v", c, partition)
		}
		if partition["A"] != partition["B"] || partition["B"] != partition["C"] {
			t.Errorf("%s: first triangle split: %v", c, partition)
		}
		if partition["D"] != partition["E"] || partition["E"] != partition["F"] {
			t.Errorf("%s: second triangle split: %v", c, partition)
		}
		if partition["A"] == partition["F"] {
			t.Errorf("%s: triangles merged: %v", c, partition)
		}
	}
}

func TestCommunities_Components(t *testing.T) {
	g := quickGraph([]string{"A", "B", "C", "D"}, [][2]string{{"B", "C"}})
	partition, err := CommunityComponents.Detect(g, DefaultCommunityParams())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"A": 0, "B": 1, "C": 1, "D": 2}
	for id, c := range want {
		if partition[id] != c {
			t.Errorf("%s: community=%d, want %d (%v)", id, partition[id], c, partition)
		}
	}
}

func TestLouvain_EmptyGraphYieldsSingletons(t *testing.T) {
	g := quickGraph([]string{"A", "B"}, nil)
	partition, _ := CommunityLouvain.Detect(g, DefaultCommunityParams())
	if len(partition) != 2 || partition["A"] == partition["B"] {
		t.Errorf("expected two singleton communities, got %v", partition)
	}
}

func TestLouvain_FirstLevelOnly(t *testing.T) {
	g := twoTriangles()
	var levels int
	for range louvainLevels(g, 1, 1e-7) {
		levels++
	}
	if levels == 0 {
		t.Fatal("expected at least one level")
	}
	first := normalizeFirstLevel(louvainLevels(g, 1, 1e-7))
	if len(first) != 6 {
		t.Errorf("expected all vertices in first level, got %v", first)
	}
}

func TestNormalizeSets(t *testing.T) {
	got := normalizeSets([][]string{{"z", "c"}, {"b"}, {}, {"a", "y"}})
	want := map[string]int{"a": 0, "y": 0, "b": 1, "c": 2, "z": 2}
	for id, c := range want {
		if got[id] != c {
			t.Errorf("%s: got %d, want %d", id, got[id], c)
		}
	}
}

func TestModularity(t *testing.T) {
	g := twoTriangles()
	good := Modularity(g, map[string]int{"A": 0, "B": 0, "C": 0, "D": 1, "E": 1, "F": 1})
	bad := Modularity(g, map[string]int{"A": 0, "B": 1, "C": 0, "D": 1, "E": 0, "F": 1})
	if good <= bad {
		t.Errorf("cluster split should score higher: good=%v bad=%v", good, bad)
	}
	// 7 unit edges, each triangle has 3 internal edges and total degree 7
	want := 2 * (3.0/7 - math.Pow(7.0/14, 2))
	if math.Abs(good-want) > 1e-9 {
		t.Errorf("modularity=%v, want %v", good, want)
	}
}

// --- UnionFind ---

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind([]string{"a", "b", "c", "d"})
	if !uf.Union("a", "b") || uf.Union("b", "a") {
		t.Error("first union should merge, second should not")
	}
	uf.Union("c", "b")
	if uf.Size("a") != 3 {
		t.Errorf("expected size 3, got %d", uf.Size("a"))
	}
	comps := uf.Components()
	if len(comps) != 2 || len(comps[0]) != 3 || comps[1][0] != "d" {
		t.Errorf("unexpected components %v", comps)
	}
}

// --- Topology ---

func TestTopology_EmptyGraph(t *testing.T) {
	r := ComputeTopology(New(nil, nil), 4, 10)
	if r.TotalNodes != 0 || r.TotalEdges != 0 || r.NumComponents != 0 {
		t.Errorf("empty graph should have all zeros, got nodes=%d edges=%d components=%d",
			r.TotalNodes, r.TotalEdges, r.NumComponents)
	}
	if len(r.DegreeHistogram) != 7 {
		t.Errorf("expected 7 histogram buckets, got %d", len(r.DegreeHistogram))
	}
}

func TestTopology_TwoComponents(t *testing.T) {
	g := quickGraph(
		[]string{"A", "B", "C", "D", "E"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"D", "E"}},
	)
	r := ComputeTopology(g, 4, 10)
	if r.NumComponents != 2 {
		t.Errorf("expected 2 components, got %d", r.NumComponents)
	}
	if r.LargestComponent != 3 || r.SmallestComponent != 2 {
		t.Errorf("expected largest=3 smallest=2, got %d/%d", r.LargestComponent, r.SmallestComponent)
	}
}

func TestTopology_OrphansAndHubs(t *testing.T) {
	g := quickGraph(
		[]string{"center", "s1", "s2", "s3", "s4", "s5", "lonely"},
		[][2]string{{"s1", "center"}, {"s2", "center"}, {"s3", "center"}, {"s4", "center"}, {"s5", "center"}, {"s5", "center"}},
	)
	r := ComputeTopology(g, 4, 10)
	if r.OrphanCount != 1 || r.OrphanIDs[0] != "lonely" {
		t.Errorf("expected lonely as only orphan, got %v", r.OrphanIDs)
	}
	if len(r.Hubs) != 1 || r.Hubs[0].ID != "center" {
		t.Fatalf("expected center as hub, got %v", r.Hubs)
	}
	if r.Hubs[0].Degree != 5 || r.Hubs[0].InDegree != 6 {
		t.Errorf("expected 5 distinct partners and 6 incoming edges, got %d/%d", r.Hubs[0].Degree, r.Hubs[0].InDegree)
	}
}

func TestTopology_CommunitySummaries(t *testing.T) {
	g := twoTriangles()
	g.Nodes["B"].Size = 9
	g.AssignCommunities(map[string]int{"A": 0, "B": 0, "C": 0, "D": 1, "E": 1, "F": 1})
	r := ComputeTopology(g, 4, 10)
	if len(r.Communities) != 2 {
		t.Fatalf("expected 2 communities, got %v", r.Communities)
	}
	c0 := r.Communities[0]
	if c0.ID != 0 || c0.Members != 3 || c0.Edges != 3 || c0.Leader != "B" {
		t.Errorf("unexpected summary %+v", c0)
	}
	if r.Modularity <= 0 {
		t.Errorf("expected positive modularity, got %v", r.Modularity)
	}
}

// --- Bridges ---

func TestBridges_Path(t *testing.T) {
	g := quickGraph([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	r := ComputeBridges(g)
	if r.BridgeCount != 2 {
		t.Errorf("expected 2 bridges, got %d", r.BridgeCount)
	}
	if r.APCount != 1 || r.ArticulationPoints[0].ID != "B" {
		t.Errorf("expected B as the only AP, got %v", r.ArticulationPoints)
	}
}

func TestBridges_CycleHasNone(t *testing.T) {
	g := quickGraph([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}})
	r := ComputeBridges(g)
	if r.BridgeCount != 0 || r.APCount != 0 {
		t.Errorf("triangle should have no bridges or APs, got %d/%d", r.BridgeCount, r.APCount)
	}
}

func TestBridges_ParallelEdgesAreNotBridges(t *testing.T) {
	g := quickGraph([]string{"A", "B"}, [][2]string{{"A", "B"}, {"B", "A"}})
	// parallel interactions collapse to one undirected link
	if r := ComputeBridges(g); r.BridgeCount != 1 {
		t.Errorf("expected 1 bridge, got %d", r.BridgeCount)
	}
}

func TestBridges_TwoTriangles(t *testing.T) {
	g := twoTriangles()
	g.AssignCommunities(map[string]int{"A": 0, "B": 0, "C": 0, "D": 1, "E": 1, "F": 1})
	r := ComputeBridges(g)
	if r.BridgeCount != 1 {
		t.Fatalf("expected 1 bridge, got %d", r.BridgeCount)
	}
	b := r.BridgeEdges[0]
	if !(b.SourceID == "C" && b.TargetID == "D") && !(b.SourceID == "D" && b.TargetID == "C") {
		t.Errorf("expected C-D bridge, got %+v", b)
	}
	if r.APCount != 2 {
		t.Errorf("expected C and D as APs, got %v", r.ArticulationPoints)
	}
	if len(r.FragileConnections) != 1 || r.FragileConnections[0].CrossEdges != 1 {
		t.Errorf("expected one fragile connection, got %v", r.FragileConnections)
	}
}

// --- Health ---

func TestAutomation(t *testing.T) {
	g := quickGraph([]string{"a", "b", "c", "d"}, nil)
	g.Nodes["a"].BotScore = 0.9
	g.Nodes["b"].BotScore = 0.2
	g.Nodes["c"].BotScore = 0.75
	r := ComputeAutomation(g, 0.7, 10)
	if r.ScoredCount != 3 || r.SuspectedCount != 2 {
		t.Errorf("expected 3 scored / 2 suspected, got %d/%d", r.ScoredCount, r.SuspectedCount)
	}
	if r.Suspected[0].ID != "a" {
		t.Errorf("expected highest score first, got %v", r.Suspected)
	}
	if math.Abs(r.SuspectedShare-2.0/3) > 1e-9 {
		t.Errorf("share=%v", r.SuspectedShare)
	}
}

func TestAnalyze_HealthyGraph(t *testing.T) {
	g := quickGraph([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}})
	r := Analyze(g, DefaultConfig())
	if math.Abs(r.HealthScore-1) > 1e-9 {
		t.Errorf("triangle with no bots should score 1, got %v (%+v)", r.HealthScore, r.HealthBreakdown)
	}
}

func TestAnalyze_BotsLowerHealth(t *testing.T) {
	g := quickGraph([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}})
	clean := Analyze(g, DefaultConfig()).HealthScore
	for _, n := range g.Nodes {
		n.BotScore = 0.95
	}
	r := Analyze(g, DefaultConfig())
	if r.HealthBreakdown.Authenticity != 0 {
		t.Errorf("all-bot graph should have zero authenticity, got %v", r.HealthBreakdown.Authenticity)
	}
	if r.HealthScore >= clean {
		t.Errorf("bots should lower health: %v >= %v", r.HealthScore, clean)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	r := Analyze(New(nil, nil), DefaultConfig())
	if r.HealthScore != 0 {
		t.Errorf("empty graph should score 0, got %v", r.HealthScore)
	}
}
