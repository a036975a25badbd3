package aggregate

import (
	"fmt"
	"sort"

	"rtgraph/graphgen/internal/record"
)

// Aggregate folds rows into both canonical tables
func Aggregate(rows record.Rows) (EdgeTable, NodeTable) {
	return Edges(rows.Edges), Nodes(rows.Nodes)
}

// Edges groups edge rows by (source, target, kind). A row whose event id was
// already counted is dropped, so size is the number of distinct interactions.
// Entries are sorted by key and numbered edge_0, edge_1, ...
func Edges(rows []record.EdgeRecord) EdgeTable {
	sorted := make([]record.EdgeRecord, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.EventID < b.EventID
	})

	seen := make(map[string]bool, len(sorted))
	groups := make(map[EdgeKey]*Edge)
	var keys []EdgeKey
	for _, r := range sorted {
		if r.EventID != "" {
			if seen[r.EventID] {
				continue
			}
			seen[r.EventID] = true
		}
		key := EdgeKey{Source: r.Source, Target: r.Target, Kind: r.Kind}
		e, ok := groups[key]
		if !ok {
			e = &Edge{Source: r.Source, Target: r.Target, Kind: r.Kind, Label: r.Kind}
			groups[key] = e
			keys = append(keys, key)
		}
		e.Size++
		e.Dates = append(e.Dates, r.Timestamp)
		e.EventIDs = append(e.EventIDs, r.EventID)
		e.SourceDates = append(e.SourceDates, r.ReferencedTimestamp)
		switch r.Kind {
		case record.KindQuote:
			e.QuotedRefs = append(e.QuotedRefs, r.Ref)
		case record.KindRepost:
			e.RepostRefs = append(e.RepostRefs, r.Ref)
		}
	}
	for _, e := range groups {
		e.QuotedRefs = dropBlank(e.QuotedRefs)
		e.RepostRefs = dropBlank(e.RepostRefs)
	}

	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	table := EdgeTable{Entries: make([]Edge, 0, len(keys))}
	for i, k := range keys {
		e := groups[k]
		e.ID = fmt.Sprintf("edge_%d", i)
		table.Entries = append(table.Entries, *e)
	}
	table.reindex()
	return table
}

// dropBlank empties a reference list that holds no reference at all. A list
// with at least one reference is kept whole so it stays parallel to Dates.
func dropBlank(refs []string) []string {
	for _, r := range refs {
		if r != "" {
			return refs
		}
	}
	return nil
}

func lessKey(a, b EdgeKey) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.Kind < b.Kind
}

type nodeRowKey struct {
	accountID, label string
	kind             record.Kind
	ts               int64
	eventID, ref     string
	count            int
	botScore         float64
}

// Nodes folds node rows into one entry per account.
//
// Exact duplicate rows are removed first. Rows sharing an event id are then
// resolved by kind precedence quote > repost > origin, so an event recorded
// both as a quote and as an origin survives once, as the quote. Among rows of
// the same kind the highest interaction count wins.
func Nodes(rows []record.NodeRecord) NodeTable {
	unique := make([]record.NodeRecord, 0, len(rows))
	exact := make(map[nodeRowKey]bool, len(rows))
	for _, r := range rows {
		k := nodeRowKey{r.AccountID, r.Label, r.Kind, r.Timestamp.UnixNano(), r.EventID, r.Ref, r.InteractionCount, r.BotScore}
		if exact[k] {
			continue
		}
		exact[k] = true
		unique = append(unique, r)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.InteractionCount > b.InteractionCount
	})
	kept := unique[:0:0]
	seenEvent := make(map[string]bool, len(unique))
	for _, r := range unique {
		if r.EventID != "" {
			if seenEvent[r.EventID] {
				continue
			}
			seenEvent[r.EventID] = true
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		return a.EventID < b.EventID
	})

	groups := make(map[string]*Node)
	var ids []string
	for _, r := range kept {
		n, ok := groups[r.AccountID]
		if !ok {
			n = &Node{AccountID: r.AccountID, PrimaryKind: r.Kind, BotScore: record.BotScoreNotComputed}
			groups[r.AccountID] = n
			ids = append(ids, r.AccountID)
		}
		// rows arrive oldest first, so the last write is the most recent
		n.Label = r.Label
		if r.BotScore >= 0 {
			n.BotScore = r.BotScore
		}
		n.Size += r.InteractionCount
		n.Dates = append(n.Dates, r.Timestamp)
		n.EventIDs = append(n.EventIDs, r.EventID)
		n.Kinds = append(n.Kinds, r.Kind)
		n.InteractionCounts = append(n.InteractionCounts, r.InteractionCount)
		n.BotScores = append(n.BotScores, r.BotScore)
		origin, quoted, repost := refColumns(r.Kind, r.Ref)
		n.OriginRefs = append(n.OriginRefs, origin)
		n.QuotedRefs = append(n.QuotedRefs, quoted)
		n.RepostRefs = append(n.RepostRefs, repost)
	}

	sort.Strings(ids)
	table := NodeTable{Entries: make([]Node, 0, len(ids))}
	for _, id := range ids {
		table.Entries = append(table.Entries, *groups[id])
	}
	table.reindex()
	return table
}

// refColumns places a row's reference in the column matching its kind; the
// other two positions hold "" so the three lists stay parallel.
func refColumns(kind record.Kind, ref string) (origin, quoted, repost string) {
	switch kind {
	case record.KindOrigin:
		return ref, "", ""
	case record.KindQuote:
		return "", ref, ""
	case record.KindRepost:
		return "", "", ref
	}
	return "", "", ""
}
