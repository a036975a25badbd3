package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rtgraph/graphgen/internal/record"
	"rtgraph/graphgen/internal/snapshot"
)

// Build is one ledger row
type Build struct {
	ID             string
	Search         string
	TypeSearch     string
	Status         snapshot.Status
	EnoughData     bool
	Cancelled      bool
	CollectedCount int
	AnalyzedCount  int
	NodeCount      int
	EdgeCount      int
	LayoutAlgo     string
	CommunityAlgo  string
	Watermark      record.Watermark
	SnapshotPath   string
	Checkpoints    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Watermark instants are stored in nanoseconds; resuming compares them
// against event timestamps exactly.
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// RecordSnapshot upserts the ledger row for the build that produced meta.
// Checkpoint writes bump the checkpoint counter; the final write does not.
func (d *DB) RecordSnapshot(meta snapshot.Metadata, path string, checkpoint bool) error {
	if meta.BuildID == "" {
		return fmt.Errorf("recording snapshot: missing build id")
	}
	now := time.Now().UnixMilli()
	created := millis(meta.DataCollectionDate)
	if created == 0 {
		created = now
	}
	bump := 0
	if checkpoint {
		bump = 1
	}
	wm := meta.Watermark

	_, err := d.conn.Exec(`
		INSERT INTO builds (
			id, search, type_search, status, enough_data, cancelled,
			collected_count, analyzed_count, node_count, edge_count,
			layout_algo, community_algo,
			last_seen_event_id, last_seen_event_ns, most_recent_event_id, most_recent_event_ns,
			collected_ns, snapshot_path, checkpoints, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			enough_data = excluded.enough_data,
			cancelled = excluded.cancelled,
			collected_count = excluded.collected_count,
			analyzed_count = excluded.analyzed_count,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			last_seen_event_id = excluded.last_seen_event_id,
			last_seen_event_ns = excluded.last_seen_event_ns,
			most_recent_event_id = excluded.most_recent_event_id,
			most_recent_event_ns = excluded.most_recent_event_ns,
			collected_ns = excluded.collected_ns,
			snapshot_path = excluded.snapshot_path,
			checkpoints = builds.checkpoints + excluded.checkpoints,
			updated_at = excluded.updated_at
	`,
		meta.BuildID, meta.Search, meta.TypeSearch, string(meta.Status), meta.EnoughData, meta.Cancelled,
		meta.CollectedCount, meta.AnalyzedCount, meta.NodeCount, meta.EdgeCount,
		meta.LayoutAlgo, meta.CommunityAlgo,
		wm.LastSeenEventID, nanos(wm.LastSeenEventTimestamp), wm.MostRecentEventID, nanos(wm.MostRecentEventTimestamp),
		nanos(wm.CollectionTimestamp), path, bump, created, now,
	)
	if err != nil {
		return fmt.Errorf("recording build %s: %w", meta.BuildID, err)
	}
	return nil
}

const buildColumns = `
	id, search, type_search, status, enough_data, cancelled,
	collected_count, analyzed_count, node_count, edge_count,
	layout_algo, community_algo,
	last_seen_event_id, last_seen_event_ns, most_recent_event_id, most_recent_event_ns,
	collected_ns, snapshot_path, checkpoints, created_at, updated_at`

func scanBuild(scanner interface{ Scan(dest ...any) error }) (Build, error) {
	var (
		b                               Build
		status                          string
		lastSeen, mostRecent, collected int64
		created, updated                int64
	)
	err := scanner.Scan(
		&b.ID, &b.Search, &b.TypeSearch, &status, &b.EnoughData, &b.Cancelled,
		&b.CollectedCount, &b.AnalyzedCount, &b.NodeCount, &b.EdgeCount,
		&b.LayoutAlgo, &b.CommunityAlgo,
		&b.Watermark.LastSeenEventID, &lastSeen, &b.Watermark.MostRecentEventID, &mostRecent,
		&collected, &b.SnapshotPath, &b.Checkpoints, &created, &updated,
	)
	if err != nil {
		return b, err
	}
	b.Status = snapshot.Status(status)
	b.Watermark.LastSeenEventTimestamp = fromNanos(lastSeen)
	b.Watermark.MostRecentEventTimestamp = fromNanos(mostRecent)
	b.Watermark.CollectionTimestamp = fromNanos(collected)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

// GetBuild returns one build by id, or nil if the ledger has no such build
func (d *DB) GetBuild(id string) (*Build, error) {
	b, err := scanBuild(d.conn.QueryRow(`SELECT `+buildColumns+` FROM builds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading build %s: %w", id, err)
	}
	return &b, nil
}

// ListBuilds returns the most recently updated builds first
func (d *DB) ListBuilds(limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`SELECT `+buildColumns+` FROM builds ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// LatestWatermark returns the watermark of the newest build for search that
// observed at least one event. Cancelled builds count: their watermark is
// still exact. Returns nil when there is nothing to continue from.
func (d *DB) LatestWatermark(search string) (*record.Watermark, error) {
	b, err := scanBuild(d.conn.QueryRow(`
		SELECT `+buildColumns+` FROM builds
		WHERE search = ? AND most_recent_event_id != ''
		ORDER BY most_recent_event_ns DESC, updated_at DESC
		LIMIT 1`, search))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading watermark for %q: %w", search, err)
	}
	return &b.Watermark, nil
}
