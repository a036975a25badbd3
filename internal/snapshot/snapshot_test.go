package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgraph/graphgen/internal/aggregate"
	"rtgraph/graphgen/internal/errs"
	"rtgraph/graphgen/internal/record"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func at(hoursAgo int) time.Time { return now.Add(-time.Duration(hoursAgo) * time.Hour) }

func ev(id, actor string, rel record.Relation, target, origin string, ts time.Time, url string) record.RawEvent {
	return record.RawEvent{
		ActorID: actor, ActorName: "n" + actor, EventID: id, Timestamp: ts, URL: url,
		InteractionCount: 1, Relation: rel,
		ReferencedEventID: origin, ReferencedActorID: target, ReferencedActorName: "n" + target,
		ReferencedTimestamp: at(72), ReferencedURL: "u-" + origin, ReferencedInteractionCount: 4,
	}
}

// sampleRows normalizes events whose origin events are all distinct
func sampleRows(t *testing.T) record.Rows {
	t.Helper()
	n := record.Normalizer{LowerBound: at(24 * 7), MinInteractions: 1}
	var rows record.Rows
	for _, e := range []record.RawEvent{
		ev("e1", "A", record.RelationRepost, "B", "o1", at(10), "u-e1"),
		ev("e2", "C", record.RelationQuote, "B", "o2", at(9), "u-e2"),
		ev("e3", "A", record.RelationRepost, "B", "o3", at(8), ""),
		ev("e4", "B", record.RelationRepost, "D", "o4", at(7), "u-e4"),
	} {
		edge, nodes, ok := n.Normalize(e)
		require.True(t, ok)
		rows.Edges = append(rows.Edges, edge)
		rows.Nodes = append(rows.Nodes, nodes[0], nodes[1])
	}
	return rows
}

func exportRows(rows record.Rows, meta Metadata) *Snapshot {
	edges, nodes := aggregate.Aggregate(rows)
	return Export(&edges, &nodes, meta)
}

func TestExport_Shape(t *testing.T) {
	rows := sampleRows(t)
	edges, nodes := aggregate.Aggregate(rows)
	community := 1
	b, _ := nodes.Get("B")
	b.Position = []float64{0.5, -0.5}
	b.CommunityID = &community
	d, _ := nodes.Get("D")
	d.Position = []float64{1, 2, 3}

	s := Export(&edges, &nodes, Metadata{Search: "kw", Status: StatusDone})
	assert.Equal(t, 3, s.Metadata.EdgeCount)
	assert.Equal(t, 4, s.Metadata.NodeCount)
	assert.Equal(t, []string{"A", "B", "C", "D"}, s.NodeIDs())

	for _, e := range s.Edges {
		assert.Equal(t, EdgeType, e.Type)
		if e.Source == "A" {
			assert.Equal(t, 2, e.Size)
			assert.Equal(t, []string{"u-e1", ""}, e.Metadata.Retweets)
			assert.Empty(t, e.Metadata.Quoted)
		}
	}

	byID := make(map[string]Node)
	for _, n := range s.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 0.5, byID["B"].X)
	assert.Nil(t, byID["B"].Z)
	require.NotNil(t, byID["B"].CommunityID)
	assert.Equal(t, 1, *byID["B"].CommunityID)
	require.NotNil(t, byID["D"].Z)
	assert.Equal(t, 3.0, *byID["D"].Z)
	assert.Nil(t, byID["A"].CommunityID)

	// B is targeted by e1, e2 and e3
	assert.Equal(t, []time.Time{at(10), at(9), at(8)}, byID["B"].Metadata.EdgeDates)
	assert.Empty(t, byID["A"].Metadata.EdgeDates)
	assert.Equal(t, "origin", byID["D"].PrimaryKind)
}

func TestDeaggregate_RoundTrip(t *testing.T) {
	rows := sampleRows(t)
	got, err := Deaggregate(exportRows(rows, Metadata{}))
	require.NoError(t, err)
	assert.ElementsMatch(t, rows.Edges, got.Edges)
	assert.ElementsMatch(t, rows.Nodes, got.Nodes)
}

func TestMerge_Idempotent(t *testing.T) {
	rows := sampleRows(t)
	r1 := record.Rows{Edges: rows.Edges[:2], Nodes: rows.Nodes[:4]}
	r2 := record.Rows{Edges: rows.Edges[2:], Nodes: rows.Nodes[4:]}

	once := exportRows(rows, Metadata{})
	merged, err := Merge(exportRows(r1, Metadata{}), r2)
	require.NoError(t, err)
	twice := exportRows(merged, Metadata{})
	assert.Equal(t, once.Edges, twice.Edges)
	assert.Equal(t, once.Nodes, twice.Nodes)

	// replaying a batch already in the snapshot changes nothing
	again, err := Merge(twice, r2)
	require.NoError(t, err)
	assert.Equal(t, once.Nodes, exportRows(again, Metadata{}).Nodes)
}

func TestMerge_NilPrior(t *testing.T) {
	rows := sampleRows(t)
	merged, err := Merge(nil, rows)
	require.NoError(t, err)
	assert.Equal(t, rows.Len(), merged.Len())
	merged.Edges[0].EventID = "mutated"
	assert.Equal(t, "e1", rows.Edges[0].EventID, "merge must not alias fresh rows")
}

func TestDeaggregate_IntegrityErrors(t *testing.T) {
	cases := map[string]func(*Snapshot){
		"edge event ids":  func(s *Snapshot) { s.Edges[0].Metadata.EventIDs = s.Edges[0].Metadata.EventIDs[1:] },
		"edge size":       func(s *Snapshot) { s.Edges[0].Size++ },
		"edge kind":       func(s *Snapshot) { s.Edges[0].Kind, s.Edges[0].Label = "reply", "reply" },
		"edge refs":       func(s *Snapshot) { s.Edges[0].Metadata.Retweets = []string{"only-one"} },
		"node kinds":      func(s *Snapshot) { s.Nodes[0].Metadata.Kinds = nil },
		"node bot scores": func(s *Snapshot) { s.Nodes[0].Metadata.BotScores = []float64{0.1, 0.2, 0.3, 0.4} },
		"node bad kind":   func(s *Snapshot) { s.Nodes[0].Metadata.Kinds[0] = "like" },
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			s := exportRows(sampleRows(t), Metadata{})
			corrupt(s)
			_, err := Deaggregate(s)
			assert.ErrorIs(t, err, errs.ErrIntegrity)
		})
	}
}

func TestCheckStaleness(t *testing.T) {
	week := 7 * 24 * time.Hour
	stale := &Snapshot{Metadata: Metadata{Watermark: record.Watermark{CollectionTimestamp: now.Add(-10 * 24 * time.Hour)}}}

	err := CheckStaleness(stale, now, week, nil)
	require.ErrorIs(t, err, errs.ErrStale)
	assert.Contains(t, err.Error(), "10d ago")

	assert.NoError(t, CheckStaleness(stale, now, week, &record.Watermark{}), "continuation lifts the check")
	assert.NoError(t, CheckStaleness(nil, now, week, nil))

	fresh := &Snapshot{Metadata: Metadata{DataCollectionDate: now.Add(-3 * 24 * time.Hour)}}
	assert.NoError(t, CheckStaleness(fresh, now, week, nil))
	old := &Snapshot{Metadata: Metadata{DataCollectionDate: now.Add(-8 * 24 * time.Hour)}}
	assert.ErrorIs(t, CheckStaleness(old, now, week, nil), errs.ErrStale)
}

func TestWriteRead(t *testing.T) {
	s := exportRows(sampleRows(t), Metadata{BuildID: "b1", Status: StatusDone, Search: "kw"})
	dir := filepath.Join(t.TempDir(), "out")
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, Write(path, s))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "b1", back.Metadata.BuildID)
	assert.Equal(t, StatusDone, back.Metadata.Status)
	require.Len(t, back.Edges, len(s.Edges))
	assert.True(t, back.Edges[0].Metadata.Dates[0].Equal(s.Edges[0].Metadata.Dates[0]))

	// a decoded snapshot is still mergeable
	rows, err := Deaggregate(back)
	require.NoError(t, err)
	assert.Equal(t, 4, rows.Len())
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(bytes.NewBufferString("{not json"))
	assert.Error(t, err)
	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEncode_FieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, exportRows(sampleRows(t), Metadata{Status: StatusProcessing})))
	out := buf.String()
	for _, key := range []string{`"dates_edges"`, `"source_dates"`, `"retweets"`, `"from"`, `"community_id"`, `"status": "PROCESSING"`} {
		assert.Contains(t, out, key)
	}
}
