// Package build sequences one graph build: collect raw events, clean them
// into canonical tables (merging a prior snapshot), assemble and lay out
// the graph, find communities and export a snapshot.
//
// Each stage returns the value that carries the next operation, so the
// normal path cannot be called out of order. The shared Build still tracks
// its state and rejects replays of a stage with errs.ErrSequence.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rtgraph/graphgen/internal/classify"
	"rtgraph/graphgen/internal/errs"
	"rtgraph/graphgen/internal/graph"
	"rtgraph/graphgen/internal/logging"
	"rtgraph/graphgen/internal/record"
	"rtgraph/graphgen/internal/snapshot"
	"rtgraph/graphgen/internal/source"
)

// State is a build's position in its lifecycle
type State int

const (
	StateInit State = iota
	StateCollected
	StateCleaned
	StateGraphBuilt
	StateCommunitiesFound
	StateExported
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCollected:
		return "COLLECTED"
	case StateCleaned:
		return "CLEANED"
	case StateGraphBuilt:
		return "GRAPH_BUILT"
	case StateCommunitiesFound:
		return "COMMUNITIES_FOUND"
	case StateExported:
		return "EXPORTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CheckpointFunc receives each intermediate snapshot written during collection
type CheckpointFunc func(ctx context.Context, s *snapshot.Snapshot) error

// Options configures a build
type Options struct {
	Search     string
	TypeSearch string
	// Since is the user-supplied lower bound on referenced events; it is
	// clamped to the lookback window.
	Since              time.Time
	MaxResults         int // stop after this many valid interactions; 0 means no limit
	MinRepostThreshold int
	Lookback           time.Duration

	Layout    graph.Layout
	Dimension int
	Community graph.Community
	Alpha     float64

	CheckpointEvery int
	Checkpoint      CheckpointFunc

	// Prior is merged into the fresh collection when set
	Prior *snapshot.Snapshot
	// Continuation resumes after a previous run; it lifts the staleness
	// check on Prior and skips events that run already saw.
	Continuation *record.Watermark

	// Classifier scores each distinct account once; nil disables bot scoring
	Classifier classify.Classifier

	Now    func() time.Time
	Logger *zap.Logger
}

// DefaultOptions returns options with the standard algorithm choices
func DefaultOptions() Options {
	return Options{
		MinRepostThreshold: 1,
		Lookback:           record.DefaultLookback,
		Layout:             graph.LayoutSpring,
		Dimension:          2,
		Community:          graph.CommunityLouvain,
		Alpha:              graph.DefaultAlpha,
	}
}

func (o *Options) validate() error {
	layout, err := graph.ParseLayout(string(o.Layout))
	if err != nil {
		return err
	}
	if err := layout.Validate(o.Dimension); err != nil {
		return err
	}
	community, err := graph.ParseCommunity(string(o.Community))
	if err != nil {
		return err
	}
	o.Layout, o.Community = layout, community

	switch {
	case o.Alpha < 0 || o.Alpha > 1:
		return fmt.Errorf("%w: alpha %v outside [0,1]", errs.ErrConfiguration, o.Alpha)
	case o.MaxResults < 0, o.MinRepostThreshold < 0, o.CheckpointEvery < 0:
		return fmt.Errorf("%w: negative limit", errs.ErrConfiguration)
	case o.CheckpointEvery > 0 && o.Checkpoint == nil:
		return fmt.Errorf("%w: checkpointing every %d interactions needs a checkpoint writer", errs.ErrConfiguration, o.CheckpointEvery)
	}
	if o.Lookback <= 0 {
		o.Lookback = record.DefaultLookback
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.Logger = logging.OrNop(o.Logger)
	return nil
}

// Build owns the tables of one in-progress build. It is not safe for
// concurrent use.
type Build struct {
	opts    Options
	id      string
	state   State
	started time.Time
	norm    record.Normalizer
	logger  *zap.Logger

	rows      record.Rows
	watermark record.Watermark
	scores    map[string]float64
	collected int
	analyzed  int
	cancelled bool
	// done is false for cancelled runs and for builds whose source failed
	done bool
	// truncated is set when MaxResults stopped collection before the stream ended
	truncated bool
	// frontier is the oldest interaction timestamp read in this run
	frontier    time.Time
	checkpoints int
}

// New validates opts and prepares a build. Configuration problems and a
// stale prior snapshot are reported before any data is read.
func New(opts Options) (*Build, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	now := opts.Now()
	if err := snapshot.CheckStaleness(opts.Prior, now, opts.Lookback, opts.Continuation); err != nil {
		return nil, err
	}

	norm := record.Normalizer{
		LowerBound:      record.LowerBound(opts.Since, opts.Continuation, now, opts.Lookback),
		MinInteractions: opts.MinRepostThreshold,
	}
	wm := record.Watermark{}
	if opts.Continuation != nil {
		norm.SkipBefore = opts.Continuation.MostRecentEventTimestamp
		norm.SkipEventID = opts.Continuation.MostRecentEventID
		wm = *opts.Continuation
	}
	wm.CollectionTimestamp = now

	id := uuid.NewString()
	return &Build{
		opts:      opts,
		id:        id,
		started:   now,
		norm:      norm,
		logger:    opts.Logger.With(zap.String("build_id", id)),
		watermark: wm,
		scores:    make(map[string]float64),
	}, nil
}

// ID is the build's unique identifier, also written to snapshot metadata
func (b *Build) ID() string { return b.id }

// State reports the current lifecycle state
func (b *Build) State() State { return b.state }

// Watermark is the collection progress so far
func (b *Build) Watermark() record.Watermark { return b.watermark }

// LowerBound is the effective lower bound on referenced events
func (b *Build) LowerBound() time.Time { return b.norm.LowerBound }

// advance moves from the expected state to the next one
func (b *Build) advance(from State, msg string) error {
	if b.state != from {
		return fmt.Errorf("%w: %s (build is %s)", errs.ErrSequence, msg, b.state)
	}
	b.state = from + 1
	b.logger.Debug("stage complete", zap.Stringer("state", b.state))
	return nil
}

// Collect drains src into row-level records. It runs at most once per
// build, even if it fails. Cancelling ctx ends collection early without an
// error; the build then exports a partial snapshot flagged as cancelled.
func (b *Build) Collect(ctx context.Context, src source.Source) (*Collected, error) {
	if err := b.advance(StateInit, "already collected; instantiate a new build"); err != nil {
		return nil, err
	}
	b.logger.Info("collection started",
		zap.String("search", record.SearchQuery(b.opts.Search, b.opts.TypeSearch, b.opts.Since)),
		zap.Time("lower_bound", b.norm.LowerBound),
		zap.Bool("continuation", b.opts.Continuation != nil),
		zap.Int("max_results", b.opts.MaxResults))

	for {
		if ctx.Err() != nil {
			b.cancelled = true
			break
		}
		if b.opts.MaxResults > 0 && b.analyzed >= b.opts.MaxResults {
			b.done = true
			b.truncated = true
			break
		}

		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			b.done = true
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				b.cancelled = true
				break
			}
			return nil, fmt.Errorf("collect: %w", err)
		}

		ok, err := b.ingest(ctx, ev)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if every := b.opts.CheckpointEvery; every > 0 && b.analyzed%every == 0 {
			if err := b.checkpoint(ctx); err != nil {
				return nil, err
			}
		}
	}

	if b.cancelled {
		b.logger.Warn("collection cancelled", zap.Int("collected", b.collected), zap.Int("analyzed", b.analyzed))
	} else {
		b.logger.Info("collection finished", zap.Int("collected", b.collected), zap.Int("analyzed", b.analyzed))
	}
	return &Collected{b: b}, nil
}

// ingest normalizes one event, scores its accounts and appends its rows.
// It reports whether the event was valid.
func (b *Build) ingest(ctx context.Context, ev record.RawEvent) (bool, error) {
	b.collected++
	b.watermark.Observe(ev)
	if _, ok := record.KindOf(ev.Relation); ok && (b.frontier.IsZero() || ev.Timestamp.Before(b.frontier)) {
		b.frontier = ev.Timestamp
	}

	edge, nodes, ok := b.norm.Normalize(ev)
	if !ok {
		b.logger.Debug("event skipped", zap.String("event_id", ev.EventID), zap.String("relation", string(ev.Relation)))
		return false, nil
	}

	var err error
	if nodes[0].BotScore, err = b.score(ctx, ev.ActorID, ev.Actor); err != nil {
		return false, err
	}
	if nodes[1].BotScore, err = b.score(ctx, ev.ReferencedActorID, ev.ReferencedActor); err != nil {
		return false, err
	}

	b.rows.Edges = append(b.rows.Edges, edge)
	b.rows.Nodes = append(b.rows.Nodes, nodes[0], nodes[1])
	b.analyzed++
	return true, nil
}

// score classifies an account the first time it is seen with profile data
func (b *Build) score(ctx context.Context, accountID string, a *record.Account) (float64, error) {
	if b.opts.Classifier == nil || a == nil {
		return record.BotScoreNotComputed, nil
	}
	if s, ok := b.scores[accountID]; ok {
		return s, nil
	}
	s, err := b.opts.Classifier.Score(ctx, *a)
	if err != nil {
		return 0, fmt.Errorf("score account %s: %w", accountID, err)
	}
	b.scores[accountID] = s
	return s, nil
}

// checkpoint runs the remaining stages over the rows collected so far and
// hands the result to the checkpoint writer. Build state and the collected
// rows are left untouched; collection is still running, so the partial tail
// is trimmed from the checkpoint.
func (b *Build) checkpoint(ctx context.Context) error {
	res, err := b.clean(b.rows, true)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := b.assemble(res); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := b.detect(res); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	snap := b.export(res, snapshot.StatusProcessing)
	if err := b.opts.Checkpoint(ctx, snap); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	b.checkpoints++
	b.logger.Info("checkpoint written",
		zap.Int("analyzed", b.analyzed),
		zap.Int("edges", snap.Metadata.EdgeCount),
		zap.Int("checkpoint", b.checkpoints))
	return nil
}

// Checkpoints is the number of intermediate snapshots written
func (b *Build) Checkpoints() int { return b.checkpoints }
