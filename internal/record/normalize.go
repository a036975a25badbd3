package record

import (
	"fmt"
	"time"
)

// DefaultLookback is how far back interaction counts remain retrievable.
const DefaultLookback = 7 * 24 * time.Hour

// LowerBound resolves the referenced-event lower bound for a collection run.
// A continuation watermark replaces the user date; either is clamped to the
// lookback window ending at now.
func LowerBound(since time.Time, continuation *Watermark, now time.Time, lookback time.Duration) time.Time {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	floor := now.Add(-lookback)
	bound := since
	if continuation != nil && !continuation.LastSeenEventTimestamp.IsZero() {
		bound = continuation.LastSeenEventTimestamp
	}
	if bound.Before(floor) {
		return floor
	}
	return bound
}

// SearchQuery builds the query string handed to an event source
func SearchQuery(keyword, typeSearch string, since time.Time) string {
	q := keyword
	if typeSearch != "" {
		q += " " + typeSearch
	}
	if !since.IsZero() {
		q += fmt.Sprintf(" since:%s", since.Format("2006-01-02"))
	}
	return q
}

// Normalizer applies the validity predicate and converts valid events to rows
type Normalizer struct {
	LowerBound      time.Time
	MinInteractions int
	// SkipBefore drops events older than this instant, and SkipEventID the
	// event at it; the run whose watermark is being continued already saw
	// them. Other events sharing the instant are kept and deduplicated by
	// event id when snapshots merge.
	SkipBefore  time.Time
	SkipEventID string
}

// Valid reports whether ev passes the validity predicate. Both events must
// carry an id: rows without one cannot be deduplicated across runs.
func (n Normalizer) Valid(ev RawEvent) bool {
	if _, ok := KindOf(ev.Relation); !ok {
		return false
	}
	if ev.EventID == "" || ev.ReferencedEventID == "" {
		return false
	}
	if !n.SkipBefore.IsZero() && ev.Timestamp.Before(n.SkipBefore) {
		return false
	}
	if n.SkipEventID != "" && ev.EventID == n.SkipEventID {
		return false
	}
	return ev.ReferencedTimestamp.After(n.LowerBound) &&
		ev.ActorID != ev.ReferencedActorID &&
		ev.ReferencedInteractionCount >= n.MinInteractions
}

// Normalize returns the edge row plus the actor and origin node rows for ev.
// ok is false when ev fails the validity predicate.
func (n Normalizer) Normalize(ev RawEvent) (edge EdgeRecord, nodes [2]NodeRecord, ok bool) {
	if !n.Valid(ev) {
		return edge, nodes, false
	}
	kind, _ := KindOf(ev.Relation)

	edge = EdgeRecord{
		Source:              ev.ActorID,
		Target:              ev.ReferencedActorID,
		Kind:                kind,
		Timestamp:           ev.Timestamp,
		EventID:             ev.EventID,
		Ref:                 ev.URL,
		ReferencedTimestamp: ev.ReferencedTimestamp,
	}
	nodes[0] = NodeRecord{
		AccountID:        ev.ActorID,
		Label:            Label(ev.ActorID, ev.ActorName),
		Kind:             kind,
		Timestamp:        ev.Timestamp,
		EventID:          ev.EventID,
		Ref:              ev.URL,
		InteractionCount: ev.InteractionCount,
		BotScore:         BotScoreNotComputed,
	}
	nodes[1] = NodeRecord{
		AccountID:        ev.ReferencedActorID,
		Label:            Label(ev.ReferencedActorID, ev.ReferencedActorName),
		Kind:             KindOrigin,
		Timestamp:        ev.ReferencedTimestamp,
		EventID:          ev.ReferencedEventID,
		Ref:              ev.ReferencedURL,
		InteractionCount: ev.ReferencedInteractionCount,
		BotScore:         BotScoreNotComputed,
	}
	return edge, nodes, true
}
