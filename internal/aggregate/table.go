// Package aggregate folds row-level records into canonical edge and node
// tables keyed by unique identity.
package aggregate

import (
	"time"

	"rtgraph/graphgen/internal/record"
)

// EdgeKey identifies one canonical edge
type EdgeKey struct {
	Source string
	Target string
	Kind   record.Kind
}

// Edge is a canonical edge: every interaction of Kind from Source to Target
type Edge struct {
	ID     string
	Source string
	Target string
	Kind   record.Kind
	Label  record.Kind // kind of the chronologically first row
	Size   int
	Weight float64

	// Parallel, ordered by event timestamp ascending.
	Dates       []time.Time
	EventIDs    []string
	SourceDates []time.Time

	// Parallel to Dates, or empty when no interaction carried a reference.
	QuotedRefs []string
	RepostRefs []string
}

// Key returns the edge's identity
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Kind: e.Kind}
}

// EdgeTable holds canonical edges, unique by EdgeKey
type EdgeTable struct {
	Entries []Edge
	index   map[EdgeKey]int
}

// Len is the number of canonical edges
func (t *EdgeTable) Len() int { return len(t.Entries) }

// Get looks up an edge by key
func (t *EdgeTable) Get(key EdgeKey) (*Edge, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return &t.Entries[i], true
}

// MaxSize returns the largest edge size, 0 for an empty table
func (t *EdgeTable) MaxSize() int {
	max := 0
	for i := range t.Entries {
		if t.Entries[i].Size > max {
			max = t.Entries[i].Size
		}
	}
	return max
}

func (t *EdgeTable) reindex() {
	t.index = make(map[EdgeKey]int, len(t.Entries))
	for i := range t.Entries {
		t.index[t.Entries[i].Key()] = i
	}
}

// Node is a canonical account
type Node struct {
	AccountID   string
	Label       string
	Size        int // sum of InteractionCounts
	PrimaryKind record.Kind
	BotScore    float64

	// Parallel, ordered by timestamp ascending.
	Dates             []time.Time
	EventIDs          []string
	Kinds             []record.Kind
	InteractionCounts []int
	OriginRefs        []string
	QuotedRefs        []string
	RepostRefs        []string
	BotScores         []float64

	// Assigned after graph assembly.
	CommunityID *int
	Position    []float64
}

// NodeTable holds canonical nodes, unique by account id
type NodeTable struct {
	Entries []Node
	index   map[string]int
}

// Len is the number of canonical nodes
func (t *NodeTable) Len() int { return len(t.Entries) }

// Get looks up a node by account id
func (t *NodeTable) Get(accountID string) (*Node, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[accountID]
	if !ok {
		return nil, false
	}
	return &t.Entries[i], true
}

// IDs returns account ids in table order (sorted)
func (t *NodeTable) IDs() []string {
	ids := make([]string, len(t.Entries))
	for i := range t.Entries {
		ids[i] = t.Entries[i].AccountID
	}
	return ids
}

func (t *NodeTable) reindex() {
	t.index = make(map[string]int, len(t.Entries))
	for i := range t.Entries {
		t.index[t.Entries[i].AccountID] = i
	}
}
