package snapshot

import (
	"sort"
	"time"

	"rtgraph/graphgen/internal/aggregate"
	"rtgraph/graphgen/internal/record"
)

// Export renders canonical tables as a snapshot. Node positions and
// community ids are taken from the node table as assigned by the graph
// stages; nodes without a position export at the origin.
func Export(edges *aggregate.EdgeTable, nodes *aggregate.NodeTable, meta Metadata) *Snapshot {
	edgeDates := make(map[string][]time.Time)
	out := &Snapshot{
		Edges: make([]Edge, 0, edges.Len()),
		Nodes: make([]Node, 0, nodes.Len()),
	}

	for i := range edges.Entries {
		e := &edges.Entries[i]
		edgeDates[e.Target] = append(edgeDates[e.Target], e.Dates...)
		out.Edges = append(out.Edges, Edge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Size:   e.Size,
			Label:  e.Label.String(),
			Kind:   e.Kind.String(),
			Type:   EdgeType,
			Weight: e.Weight,
			Metadata: EdgeMetadata{
				Dates:       cloneTimes(e.Dates),
				EventIDs:    cloneStrings(e.EventIDs),
				SourceDates: cloneTimes(e.SourceDates),
				Quoted:      nonNil(e.QuotedRefs),
				Retweets:    nonNil(e.RepostRefs),
			},
		})
	}

	for i := range nodes.Entries {
		n := &nodes.Entries[i]
		dates := edgeDates[n.AccountID]
		sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
		if dates == nil {
			dates = []time.Time{}
		}

		node := Node{
			ID:          n.AccountID,
			Label:       n.Label,
			Size:        n.Size,
			PrimaryKind: n.PrimaryKind.String(),
			BotScore:    n.BotScore,
			CommunityID: n.CommunityID,
			Metadata: NodeMetadata{
				Dates:             cloneTimes(n.Dates),
				EventIDs:          cloneStrings(n.EventIDs),
				Kinds:             kindStrings(n.Kinds),
				InteractionCounts: append([]int{}, n.InteractionCounts...),
				Tweets:            cloneStrings(n.OriginRefs),
				Quoted:            cloneStrings(n.QuotedRefs),
				Retweets:          cloneStrings(n.RepostRefs),
				BotScores:         append([]float64{}, n.BotScores...),
				EdgeDates:         dates,
			},
		}
		if len(n.Position) >= 2 {
			node.X, node.Y = n.Position[0], n.Position[1]
		}
		if len(n.Position) >= 3 {
			z := n.Position[2]
			node.Z = &z
		}
		out.Nodes = append(out.Nodes, node)
	}

	meta.NodeCount = len(out.Nodes)
	meta.EdgeCount = len(out.Edges)
	out.Metadata = meta
	return out
}

func kindStrings(kinds []record.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}

func cloneTimes(ts []time.Time) []time.Time {
	return append([]time.Time{}, ts...)
}

func cloneStrings(ss []string) []string {
	return append([]string{}, ss...)
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return cloneStrings(ss)
}
