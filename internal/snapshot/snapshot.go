// Package snapshot defines the persisted graph document, converts canonical
// tables to it, and turns a prior document back into rows for merging.
package snapshot

import (
	"time"

	"rtgraph/graphgen/internal/record"
)

// Status tells whether the collection behind a snapshot ran to completion
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
)

// EdgeType is the drawing hint carried by every exported edge
const EdgeType = "arrow"

// Snapshot is the standalone export of one build
type Snapshot struct {
	Edges    []Edge   `json:"edges"`
	Nodes    []Node   `json:"nodes"`
	Metadata Metadata `json:"metadata"`
}

// Edge is an exported canonical edge
type Edge struct {
	ID       string       `json:"id"`
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Size     int          `json:"size"`
	Label    string       `json:"label"`
	Kind     string       `json:"kind"`
	Type     string       `json:"type"`
	Weight   float64      `json:"weight"`
	Metadata EdgeMetadata `json:"metadata"`
}

// EdgeMetadata holds an edge's per-interaction lists. Dates, EventIDs and
// SourceDates are parallel; Quoted and Retweets are parallel too, or empty when
// no interaction carried a reference.
type EdgeMetadata struct {
	Dates       []time.Time `json:"dates"`
	EventIDs    []string    `json:"event_ids"`
	SourceDates []time.Time `json:"source_dates"`
	Quoted      []string    `json:"quoted"`
	Retweets    []string    `json:"retweets"`
}

// Node is an exported canonical account
type Node struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Size        int          `json:"size"`
	PrimaryKind string       `json:"from"`
	BotScore    float64      `json:"bot_score"`
	Metadata    NodeMetadata `json:"metadata"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Z           *float64     `json:"z,omitempty"`
	CommunityID *int         `json:"community_id"`
}

// NodeMetadata holds a node's per-appearance lists. All lists except
// EdgeDates are parallel and must stay so for the snapshot to be mergeable.
type NodeMetadata struct {
	Dates             []time.Time `json:"dates"`
	EventIDs          []string    `json:"event_ids"`
	Kinds             []string    `json:"kinds"`
	InteractionCounts []int       `json:"interaction_counts"`
	Tweets            []string    `json:"tweets"`
	Quoted            []string    `json:"quoted"`
	Retweets          []string    `json:"retweets"`
	BotScores         []float64   `json:"bot_scores"`

	// Derived on export: dates of every edge targeting this node, sorted.
	EdgeDates []time.Time `json:"dates_edges"`
}

// Metadata describes how a snapshot was produced
type Metadata struct {
	BuildID            string           `json:"build_id"`
	Search             string           `json:"search"`
	TypeSearch         string           `json:"type_search"`
	Since              time.Time        `json:"since"`
	MaxResults         int              `json:"max_results"`
	MinRepostThreshold int              `json:"min_repost_threshold"`
	Watermark          record.Watermark `json:"watermark"`
	DataCollectionDate time.Time        `json:"data_collection_date"`
	LayoutAlgo         string           `json:"layout_algo"`
	CommunityAlgo      string           `json:"community_algo"`
	Dimension          int              `json:"dimension"`
	Alpha              float64          `json:"alpha"`
	CollectedCount     int              `json:"collected_count"`
	AnalyzedCount      int              `json:"analyzed_count"`
	TrimmedCount       int              `json:"trimmed_count"` // interactions dropped as an incomplete tail
	NodeCount          int              `json:"node_count"`
	EdgeCount          int              `json:"edge_count"`
	EnoughData         bool             `json:"enough_data"`
	Cancelled          bool             `json:"cancelled"`
	Status             Status           `json:"status"`
}

// NodeIDs returns the exported node ids in document order
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i := range s.Nodes {
		ids[i] = s.Nodes[i].ID
	}
	return ids
}
