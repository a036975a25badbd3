package record

import "time"

// Watermark tracks collection progress. It bounds the validity window of
// future merges and lets a later run continue where this one stopped.
type Watermark struct {
	LastSeenEventID          string    `json:"last_seen_event_id"`
	LastSeenEventTimestamp   time.Time `json:"last_seen_event_timestamp"`
	MostRecentEventID        string    `json:"most_recent_event_id"`
	MostRecentEventTimestamp time.Time `json:"most_recent_event_timestamp"`
	CollectionTimestamp      time.Time `json:"collection_timestamp"`
}

// Observe advances the watermark past ev, valid or not
func (w *Watermark) Observe(ev RawEvent) {
	w.LastSeenEventID = ev.EventID
	w.LastSeenEventTimestamp = ev.Timestamp
	if w.MostRecentEventID == "" || ev.Timestamp.After(w.MostRecentEventTimestamp) {
		w.MostRecentEventID = ev.EventID
		w.MostRecentEventTimestamp = ev.Timestamp
	}
}

// IsZero reports whether nothing has been observed yet
func (w Watermark) IsZero() bool {
	return w.LastSeenEventID == "" && w.MostRecentEventID == ""
}
