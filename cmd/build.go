package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rtgraph/graphgen/internal/build"
	"rtgraph/graphgen/internal/classify"
	"rtgraph/graphgen/internal/db"
	"rtgraph/graphgen/internal/graph"
	"rtgraph/graphgen/internal/snapshot"
	"rtgraph/graphgen/internal/source"
)

var (
	buildSearch          string
	buildTypeSearch      string
	buildSince           string
	buildMaxResults      int
	buildMinReposts      int
	buildLayout          string
	buildDimension       int
	buildCommunity       string
	buildAlpha           float64
	buildCheckpointEvery int
	buildPrior           string
	buildResume          bool
	buildBotScores       bool
	buildClassifierModel string
	buildInput           string
	buildOutput          string
	buildRetry           bool
	buildNoLedger        bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Collect events for a search and export a laid-out graph snapshot",
	Long: `Reads raw interaction events (one JSON object per line) for a search,
normalizes and aggregates them, optionally merges a prior snapshot, lays out
the graph, detects communities and writes the snapshot as JSON.

Interrupting a build (Ctrl-C) stops collection and still exports what was
collected, marked as cancelled.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildSearch, "search", "s", "", "Search keyword the events were collected for (required)")
	f.StringVar(&buildTypeSearch, "type-search", "", "Search qualifier recorded with the snapshot (default from config)")
	f.StringVar(&buildSince, "since", "", "Ignore interactions referencing events before this date (YYYY-MM-DD)")
	f.IntVar(&buildMaxResults, "max-results", 0, "Stop after this many valid interactions (0 = no limit)")
	f.IntVar(&buildMinReposts, "min-reposts", 1, "Minimum interaction count of the referenced event")
	f.StringVar(&buildLayout, "layout", "", "Layout algorithm: "+strings.Join(graph.LayoutNames(), ", "))
	f.IntVar(&buildDimension, "dimension", 2, "Layout dimension (2 or 3)")
	f.StringVar(&buildCommunity, "community", "", "Community algorithm: "+strings.Join(graph.CommunityNames(), ", "))
	f.Float64Var(&buildAlpha, "alpha", graph.DefaultAlpha, "Edge weight blend: share given to connector rarity 1/(in(s)+in(t)), the rest to size/maxSize, in [0,1]")
	f.IntVar(&buildCheckpointEvery, "checkpoint-every", 0, "Write an intermediate snapshot every N interactions (0 = off)")
	f.StringVar(&buildPrior, "prior", "", "Prior snapshot to merge into this build")
	f.BoolVar(&buildResume, "resume", false, "Continue after the latest recorded build for the same search")
	f.BoolVar(&buildBotScores, "bot-scores", false, "Score every account with the bot classifier")
	f.StringVar(&buildClassifierModel, "classifier-model", "", "YAML classifier weights (implies --bot-scores)")
	f.StringVarP(&buildInput, "input", "i", "-", "JSONL event file, - for stdin")
	f.StringVarP(&buildOutput, "output", "o", "graph.json", "Snapshot output path")
	f.BoolVar(&buildRetry, "retry", false, "Retry transient source failures with exponential backoff")
	f.BoolVar(&buildNoLedger, "no-ledger", false, "Do not record the build in the ledger")
	_ = buildCmd.MarkFlagRequired("search")
	rootCmd.AddCommand(buildCmd)
}

// buildOptions merges config defaults with the flags set on this invocation
func buildOptions(cmd *cobra.Command) (build.Options, error) {
	changed := cmd.Flags().Changed
	bc := cfg.Build

	opts := build.DefaultOptions()
	opts.Search = buildSearch
	opts.TypeSearch = bc.TypeSearch
	opts.MaxResults = bc.MaxResults
	opts.MinRepostThreshold = bc.MinRepostThreshold
	opts.Lookback = cfg.Lookback()
	opts.Layout = graph.Layout(bc.Layout)
	opts.Dimension = bc.Dimension
	opts.Community = graph.Community(bc.Community)
	opts.Alpha = bc.Alpha
	opts.CheckpointEvery = bc.CheckpointEvery
	opts.Logger = logger

	if changed("type-search") {
		opts.TypeSearch = buildTypeSearch
	}
	if changed("max-results") {
		opts.MaxResults = buildMaxResults
	}
	if changed("min-reposts") {
		opts.MinRepostThreshold = buildMinReposts
	}
	if changed("layout") {
		opts.Layout = graph.Layout(buildLayout)
	}
	if changed("dimension") {
		opts.Dimension = buildDimension
	}
	if changed("community") {
		opts.Community = graph.Community(buildCommunity)
	}
	if changed("alpha") {
		opts.Alpha = buildAlpha
	}
	if changed("checkpoint-every") {
		opts.CheckpointEvery = buildCheckpointEvery
	}
	if buildSince != "" {
		since, err := time.Parse(time.DateOnly, buildSince)
		if err != nil {
			return opts, fmt.Errorf("--since: %w", err)
		}
		opts.Since = since
	}

	model := bc.ClassifierModel
	if changed("classifier-model") {
		model = buildClassifierModel
	}
	switch {
	case model != "":
		m, err := classify.LoadModel(model)
		if err != nil {
			return opts, err
		}
		opts.Classifier = m
	case buildBotScores || bc.BotScores:
		opts.Classifier = classify.DefaultModel()
	}

	if buildPrior != "" {
		prior, err := snapshot.Read(buildPrior)
		if err != nil {
			return opts, fmt.Errorf("loading prior snapshot: %w", err)
		}
		opts.Prior = prior
	}
	return opts, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}

	var ledger *db.DB
	if !buildNoLedger {
		ledger, err = OpenDatabase(true)
		if err != nil {
			return err
		}
		defer ledger.Close()
	}

	if buildResume {
		if ledger == nil {
			return errors.New("--resume needs the ledger; drop --no-ledger")
		}
		wm, err := ledger.LatestWatermark(opts.Search)
		if err != nil {
			return err
		}
		if wm == nil {
			logger.Warn("nothing to resume, starting a fresh collection", zap.String("search", opts.Search))
		} else {
			opts.Continuation = wm
			logger.Info("resuming collection",
				zap.String("after_event", wm.MostRecentEventID),
				zap.Time("after", wm.MostRecentEventTimestamp))
		}
	}

	if opts.CheckpointEvery > 0 {
		opts.Checkpoint = func(ctx context.Context, s *snapshot.Snapshot) error {
			if err := snapshot.Write(buildOutput, s); err != nil {
				return err
			}
			if ledger != nil {
				return ledger.RecordSnapshot(s.Metadata, buildOutput, true)
			}
			return nil
		}
	}

	in, err := source.OpenJSONL(buildInput)
	if err != nil {
		return err
	}
	defer in.Close()
	var src source.Source = in
	if buildRetry {
		src = source.WithRetry(in, cfg.Retry(), logger)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := build.Run(ctx, opts, src)
	if err != nil {
		return err
	}
	if err := snapshot.Write(buildOutput, snap); err != nil {
		return err
	}
	if ledger != nil {
		if err := ledger.RecordSnapshot(snap.Metadata, buildOutput, false); err != nil {
			return err
		}
	}

	printBuildSummary(cmd, snap)
	return nil
}

func printBuildSummary(cmd *cobra.Command, snap *snapshot.Snapshot) {
	m := snap.Metadata
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "build %s  %s\n", truncID(m.BuildID), m.Status)
	fmt.Fprintf(w, "  collected %s interactions, analyzed %s\n",
		humanize.Comma(int64(m.CollectedCount)), humanize.Comma(int64(m.AnalyzedCount)))
	if !m.EnoughData {
		fmt.Fprintln(w, "  not enough data to build a graph")
	} else {
		fmt.Fprintf(w, "  %s accounts, %s edges (%s layout, %s communities)\n",
			humanize.Comma(int64(m.NodeCount)), humanize.Comma(int64(m.EdgeCount)), m.LayoutAlgo, m.CommunityAlgo)
	}
	if m.Cancelled {
		fmt.Fprintln(w, "  collection was interrupted; snapshot holds what was collected")
	}
	if !m.Watermark.IsZero() {
		fmt.Fprintf(w, "  newest event %s (%s)\n", m.Watermark.MostRecentEventID, humanize.Time(m.Watermark.MostRecentEventTimestamp))
	}
	fmt.Fprintf(w, "  written to %s\n", buildOutput)
}
