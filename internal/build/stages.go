package build

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rtgraph/graphgen/internal/aggregate"
	"rtgraph/graphgen/internal/graph"
	"rtgraph/graphgen/internal/record"
	"rtgraph/graphgen/internal/snapshot"
	"rtgraph/graphgen/internal/source"
)

// tables is the working set the post-collection stages fill in
type tables struct {
	edges  aggregate.EdgeTable
	nodes  aggregate.NodeTable
	g      *graph.Graph
	enough bool
	// trimmed counts fresh interactions dropped as a partial tail
	trimmed int
}

// Collected is a build whose raw events have been read
type Collected struct{ b *Build }

// Rows is the number of valid interactions collected
func (c *Collected) Rows() int { return c.b.rows.Len() }

// Cancelled reports whether collection stopped on context cancellation
func (c *Collected) Cancelled() bool { return c.b.cancelled }

// Clean merges the prior snapshot, aggregates the rows into canonical
// tables and computes edge weights.
func (c *Collected) Clean() (*Cleaned, error) {
	b := c.b
	if err := b.advance(StateCollected, "data must be collected first"); err != nil {
		return nil, err
	}
	res, err := b.clean(b.rows, b.cancelled || b.truncated)
	if err != nil {
		return nil, err
	}
	if !res.enough {
		b.logger.Info("not enough data; graph stages will be skipped")
	}
	return &Cleaned{b: b, t: res}, nil
}

// Cleaned holds the canonical tables
type Cleaned struct {
	b *Build
	t *tables
}

// EnoughData is false when the merged data has no edges. Graph and
// community stages then pass through and export yields an empty snapshot.
func (c *Cleaned) EnoughData() bool { return c.t.enough }

// Edges exposes the canonical edge table
func (c *Cleaned) Edges() *aggregate.EdgeTable { return &c.t.edges }

// Nodes exposes the canonical node table
func (c *Cleaned) Nodes() *aggregate.NodeTable { return &c.t.nodes }

// BuildGraph assembles the weighted graph and assigns layout positions
func (c *Cleaned) BuildGraph() (*GraphBuilt, error) {
	b := c.b
	if err := b.advance(StateCleaned, "data must be cleaned first"); err != nil {
		return nil, err
	}
	if err := b.assemble(c.t); err != nil {
		return nil, err
	}
	return &GraphBuilt{b: b, t: c.t}, nil
}

// GraphBuilt holds the assembled, laid out graph
type GraphBuilt struct {
	b *Build
	t *tables
}

// Graph is nil when there was not enough data
func (g *GraphBuilt) Graph() *graph.Graph { return g.t.g }

// FindCommunities partitions the graph with the configured algorithm
func (g *GraphBuilt) FindCommunities() (*Communities, error) {
	b := g.b
	if err := b.advance(StateGraphBuilt, "graph must be built first"); err != nil {
		return nil, err
	}
	if err := b.detect(g.t); err != nil {
		return nil, err
	}
	return &Communities{b: b, t: g.t}, nil
}

// Communities holds the fully annotated tables, ready for export
type Communities struct {
	b *Build
	t *tables
}

// Export renders the final snapshot. The build is terminal afterwards.
func (c *Communities) Export() (*snapshot.Snapshot, error) {
	b := c.b
	if err := b.advance(StateCommunitiesFound, "communities must be found first"); err != nil {
		return nil, err
	}
	status := snapshot.StatusDone
	if !b.done {
		status = snapshot.StatusProcessing
	}
	snap := b.export(c.t, status)
	b.logger.Info("snapshot exported",
		zap.Int("nodes", snap.Metadata.NodeCount),
		zap.Int("edges", snap.Metadata.EdgeCount),
		zap.Bool("enough_data", snap.Metadata.EnoughData),
		zap.String("status", string(status)))
	return snap, nil
}

// clean merges and aggregates fresh rows. When collection stopped before
// the stream ended, interactions with events at or before the collection
// frontier are dropped first; the prior snapshot is never trimmed.
func (b *Build) clean(fresh record.Rows, partial bool) (*tables, error) {
	trimmed := 0
	if partial && !b.frontier.IsZero() {
		fresh, trimmed = fresh.TrimPartialTail(b.frontier)
		b.logger.Debug("partial tail trimmed", zap.Time("frontier", b.frontier), zap.Int("dropped", trimmed))
	}
	rows, err := snapshot.Merge(b.opts.Prior, fresh)
	if err != nil {
		return nil, fmt.Errorf("merge prior snapshot: %w", err)
	}
	edges, nodes := aggregate.Aggregate(rows)
	graph.ComputeWeights(&edges, b.opts.Alpha)
	return &tables{edges: edges, nodes: nodes, enough: edges.Len() > 0, trimmed: trimmed}, nil
}

func (b *Build) assemble(t *tables) error {
	if !t.enough {
		return nil
	}
	t.g = graph.FromTables(&t.edges, &t.nodes)
	pos, err := b.opts.Layout.Place(t.g, b.opts.Dimension)
	if err != nil {
		return err
	}
	for i := range t.nodes.Entries {
		t.nodes.Entries[i].Position = pos[t.nodes.Entries[i].AccountID]
	}
	return nil
}

func (b *Build) detect(t *tables) error {
	if !t.enough {
		return nil
	}
	partition, err := b.opts.Community.Detect(t.g, graph.DefaultCommunityParams())
	if err != nil {
		return err
	}
	t.g.AssignCommunities(partition)
	for i := range t.nodes.Entries {
		n := &t.nodes.Entries[i]
		if c, ok := partition[n.AccountID]; ok {
			n.CommunityID = &c
		}
	}
	return nil
}

func (b *Build) export(t *tables, status snapshot.Status) *snapshot.Snapshot {
	meta := snapshot.Metadata{
		BuildID:            b.id,
		Search:             b.opts.Search,
		TypeSearch:         b.opts.TypeSearch,
		Since:              b.opts.Since,
		MaxResults:         b.opts.MaxResults,
		MinRepostThreshold: b.opts.MinRepostThreshold,
		Watermark:          b.watermark,
		DataCollectionDate: b.started,
		LayoutAlgo:         string(b.opts.Layout),
		CommunityAlgo:      string(b.opts.Community),
		Dimension:          b.opts.Dimension,
		Alpha:              b.opts.Alpha,
		CollectedCount:     b.collected,
		AnalyzedCount:      b.analyzed,
		TrimmedCount:       t.trimmed,
		EnoughData:         t.enough,
		Cancelled:          b.cancelled,
		Status:             status,
	}
	if !t.enough {
		return snapshot.Export(&aggregate.EdgeTable{}, &aggregate.NodeTable{}, meta)
	}
	return snapshot.Export(&t.edges, &t.nodes, meta)
}

// Run takes a new build through every stage
func Run(ctx context.Context, opts Options, src source.Source) (*snapshot.Snapshot, error) {
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	collected, err := b.Collect(ctx, src)
	if err != nil {
		return nil, err
	}
	cleaned, err := collected.Clean()
	if err != nil {
		return nil, err
	}
	built, err := cleaned.BuildGraph()
	if err != nil {
		return nil, err
	}
	found, err := built.FindCommunities()
	if err != nil {
		return nil, err
	}
	return found.Export()
}
