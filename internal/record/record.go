// Package record turns raw interaction events into row-level edge and node
// records, the single input shape of the aggregation engine.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Relation is the relation an event has to the event it references
type Relation string

const (
	RelationRepost Relation = "repost"
	RelationQuote  Relation = "quote"
	RelationNone   Relation = "none"
)

// Kind categorises a row: the role an account played in one event
type Kind string

const (
	KindQuote  Kind = "quote"
	KindRepost Kind = "repost"
	KindOrigin Kind = "origin"
)

// Rank orders kinds for same-event conflict resolution: quote < repost < origin.
func (k Kind) Rank() int {
	switch k {
	case KindQuote:
		return 0
	case KindRepost:
		return 1
	case KindOrigin:
		return 2
	default:
		return 3
	}
}

func (k Kind) String() string { return string(k) }

// ParseKind maps a serialized kind back to its constant
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindQuote:
		return KindQuote, nil
	case KindRepost:
		return KindRepost, nil
	case KindOrigin:
		return KindOrigin, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// KindOf returns the actor-side kind for a relation
func KindOf(r Relation) (Kind, bool) {
	switch r {
	case RelationRepost:
		return KindRepost, true
	case RelationQuote:
		return KindQuote, true
	default:
		return "", false
	}
}

// BotScoreNotComputed is stored when bot scoring is disabled or the account was never scored.
const BotScoreNotComputed = -1.0

// Account carries the profile attributes a classifier scores
type Account struct {
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	FollowersCount  int       `json:"followers_count"`
	FriendsCount    int       `json:"friends_count"`
	StatusesCount   int       `json:"statuses_count"`
	FavouritesCount int       `json:"favourites_count"`
	ListedCount     int       `json:"listed_count"`
	Verified        bool      `json:"verified"`
	BannerURL       string    `json:"banner_url"`
}

// RawEvent is one observed interaction together with the event it references
type RawEvent struct {
	ActorID          string    `json:"actor_id"`
	ActorName        string    `json:"actor_name,omitempty"`
	Actor            *Account  `json:"actor,omitempty"`
	EventID          string    `json:"event_id"`
	Timestamp        time.Time `json:"timestamp"`
	URL              string    `json:"url,omitempty"`
	InteractionCount int       `json:"interaction_count"`
	Relation         Relation  `json:"relation"`

	ReferencedEventID          string    `json:"referenced_event_id,omitempty"`
	ReferencedActorID          string    `json:"referenced_actor_id,omitempty"`
	ReferencedActorName        string    `json:"referenced_actor_name,omitempty"`
	ReferencedActor            *Account  `json:"referenced_actor,omitempty"`
	ReferencedTimestamp        time.Time `json:"referenced_timestamp,omitempty"`
	ReferencedURL              string    `json:"referenced_url,omitempty"`
	ReferencedInteractionCount int       `json:"referenced_interaction_count"`
}

// EdgeRecord is one interaction between two accounts, before aggregation
type EdgeRecord struct {
	Source              string
	Target              string
	Kind                Kind
	Timestamp           time.Time
	EventID             string
	Ref                 string
	ReferencedTimestamp time.Time
}

// NodeRecord is one appearance of an account in one event, before aggregation
type NodeRecord struct {
	AccountID        string
	Label            string
	Kind             Kind
	Timestamp        time.Time
	EventID          string
	Ref              string
	InteractionCount int
	BotScore         float64
}

// Rows is the flat row-oriented representation produced both by fresh
// collection and by snapshot deaggregation.
type Rows struct {
	Edges []EdgeRecord
	Nodes []NodeRecord
}

// Append adds other's rows after r's
func (r *Rows) Append(other Rows) {
	r.Edges = append(r.Edges, other.Edges...)
	r.Nodes = append(r.Nodes, other.Nodes...)
}

// Clone returns a copy whose slices do not alias r's
func (r Rows) Clone() Rows {
	out := Rows{
		Edges: make([]EdgeRecord, len(r.Edges)),
		Nodes: make([]NodeRecord, len(r.Nodes)),
	}
	copy(out.Edges, r.Edges)
	copy(out.Nodes, r.Nodes)
	return out
}

// Len is the number of edge rows, i.e. valid interactions
func (r Rows) Len() int { return len(r.Edges) }

// TrimPartialTail drops interactions whose referenced event is at or before
// frontier, with their actor and origin rows. When collection stops at
// frontier, reposts and quotes of such events may lie beyond it, so their
// counts are incomplete. It reports how many interactions were dropped.
func (r Rows) TrimPartialTail(frontier time.Time) (Rows, int) {
	dropped := make(map[string]bool)
	out := Rows{Edges: make([]EdgeRecord, 0, len(r.Edges)), Nodes: make([]NodeRecord, 0, len(r.Nodes))}
	for _, e := range r.Edges {
		if e.ReferencedTimestamp.After(frontier) {
			out.Edges = append(out.Edges, e)
			continue
		}
		dropped[e.EventID] = true
	}
	for _, n := range r.Nodes {
		if n.Kind == KindOrigin {
			if n.Timestamp.After(frontier) {
				out.Nodes = append(out.Nodes, n)
			}
			continue
		}
		if !dropped[n.EventID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out, len(r.Edges) - len(out.Edges)
}

// Label renders an account's display label
func Label(id, name string) string {
	if name == "" {
		name = id
	}
	if strings.HasPrefix(name, "@") {
		return name
	}
	return "@" + name
}
