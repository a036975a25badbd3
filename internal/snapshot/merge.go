package snapshot

import (
	"fmt"
	"time"

	"rtgraph/graphgen/internal/errs"
	"rtgraph/graphgen/internal/record"
)

// Deaggregate explodes a prior snapshot back into rows, one per list index,
// with each edge's or node's key fields reattached. The rows have the same
// shape as freshly normalized ones, so old and new data aggregate in a
// single pass.
//
// Positional lists must be parallel. A snapshot that breaks this is rejected
// with errs.ErrIntegrity rather than repaired.
func Deaggregate(s *Snapshot) (record.Rows, error) {
	var rows record.Rows
	if s == nil {
		return rows, nil
	}
	for i := range s.Edges {
		edgeRows, err := deaggregateEdge(&s.Edges[i])
		if err != nil {
			return record.Rows{}, err
		}
		rows.Edges = append(rows.Edges, edgeRows...)
	}
	for i := range s.Nodes {
		nodeRows, err := deaggregateNode(&s.Nodes[i])
		if err != nil {
			return record.Rows{}, err
		}
		rows.Nodes = append(rows.Nodes, nodeRows...)
	}
	return rows, nil
}

// Merge prepends fresh rows to the rows recovered from prior. Aggregating the
// result is equivalent to having collected both batches in one run.
func Merge(prior *Snapshot, fresh record.Rows) (record.Rows, error) {
	old, err := Deaggregate(prior)
	if err != nil {
		return record.Rows{}, err
	}
	merged := fresh.Clone()
	merged.Append(old)
	return merged, nil
}

func deaggregateEdge(e *Edge) ([]record.EdgeRecord, error) {
	kind, err := record.ParseKind(e.Kind)
	if err != nil {
		if kind, err = record.ParseKind(e.Label); err != nil {
			return nil, fmt.Errorf("%w: edge %s: %v", errs.ErrIntegrity, e.ID, err)
		}
	}

	m := e.Metadata
	n := len(m.Dates)
	if len(m.EventIDs) != n {
		return nil, fmt.Errorf("%w: edge %s: %d dates but %d event ids", errs.ErrIntegrity, e.ID, n, len(m.EventIDs))
	}
	if len(m.SourceDates) != 0 && len(m.SourceDates) != n {
		return nil, fmt.Errorf("%w: edge %s: %d dates but %d source dates", errs.ErrIntegrity, e.ID, n, len(m.SourceDates))
	}
	refs := m.Retweets
	if kind == record.KindQuote {
		refs = m.Quoted
	}
	if len(refs) != 0 && len(refs) != n {
		return nil, fmt.Errorf("%w: edge %s: %d dates but %d refs", errs.ErrIntegrity, e.ID, n, len(refs))
	}
	if e.Size != n {
		return nil, fmt.Errorf("%w: edge %s: size %d but %d dates", errs.ErrIntegrity, e.ID, e.Size, n)
	}

	rows := make([]record.EdgeRecord, n)
	for i := 0; i < n; i++ {
		rows[i] = record.EdgeRecord{
			Source:    e.Source,
			Target:    e.Target,
			Kind:      kind,
			Timestamp: m.Dates[i],
			EventID:   m.EventIDs[i],
		}
		if len(m.SourceDates) == n {
			rows[i].ReferencedTimestamp = m.SourceDates[i]
		}
		if len(refs) == n {
			rows[i].Ref = refs[i]
		}
	}
	return rows, nil
}

func deaggregateNode(nd *Node) ([]record.NodeRecord, error) {
	m := nd.Metadata
	n := len(m.Dates)
	lists := map[string]int{
		"event_ids":          len(m.EventIDs),
		"kinds":              len(m.Kinds),
		"interaction_counts": len(m.InteractionCounts),
		"tweets":             len(m.Tweets),
		"quoted":             len(m.Quoted),
		"retweets":           len(m.Retweets),
	}
	for name, l := range lists {
		if l != n {
			return nil, fmt.Errorf("%w: node %s: %d dates but %d %s", errs.ErrIntegrity, nd.ID, n, l, name)
		}
	}
	if len(m.BotScores) != 0 && len(m.BotScores) != n {
		return nil, fmt.Errorf("%w: node %s: %d dates but %d bot scores", errs.ErrIntegrity, nd.ID, n, len(m.BotScores))
	}

	rows := make([]record.NodeRecord, n)
	for i := 0; i < n; i++ {
		kind, err := record.ParseKind(m.Kinds[i])
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: %v", errs.ErrIntegrity, nd.ID, err)
		}
		score := record.BotScoreNotComputed
		if len(m.BotScores) == n {
			score = m.BotScores[i]
		}
		rows[i] = record.NodeRecord{
			AccountID:        nd.ID,
			Label:            nd.Label,
			Kind:             kind,
			Timestamp:        m.Dates[i],
			EventID:          m.EventIDs[i],
			Ref:              firstNonEmpty(m.Tweets[i], m.Quoted[i], m.Retweets[i]),
			InteractionCount: m.InteractionCounts[i],
			BotScore:         score,
		}
	}
	return rows, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// StalenessError reports a merge input collected too long ago for the
// interaction counts in the gap to still be retrievable.
type StalenessError struct {
	CollectedAt time.Time
	Age         time.Duration
	Lookback    time.Duration
}

func (e *StalenessError) Error() string {
	return fmt.Sprintf("snapshot collected %s (%dd ago) is older than the %dd lookback window; supply a continuation watermark",
		e.CollectedAt.Format(time.RFC3339), int64(e.Age/(24*time.Hour)), int64(e.Lookback/(24*time.Hour)))
}

// Is makes errors.Is(err, errs.ErrStale) match
func (e *StalenessError) Is(target error) bool { return target == errs.ErrStale }

// CheckStaleness refuses a prior snapshot whose collection timestamp is older
// than the lookback window, unless a continuation watermark is supplied.
func CheckStaleness(s *Snapshot, now time.Time, lookback time.Duration, continuation *record.Watermark) error {
	if s == nil || continuation != nil {
		return nil
	}
	if lookback <= 0 {
		lookback = record.DefaultLookback
	}
	collectedAt := s.Metadata.Watermark.CollectionTimestamp
	if collectedAt.IsZero() {
		collectedAt = s.Metadata.DataCollectionDate
	}
	age := now.Sub(collectedAt)
	if age > lookback {
		return &StalenessError{CollectedAt: collectedAt, Age: age, Lookback: lookback}
	}
	return nil
}
