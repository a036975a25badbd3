package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rtgraph/graphgen/internal/graph"
	"rtgraph/graphgen/internal/snapshot"
)

var (
	analyzeJSON         bool
	analyzeCommunity    int
	analyzeTopN         int
	analyzeHubThreshold int
	analyzeBotThreshold float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <snapshot.json>",
	Short: "Analyze a graph snapshot: topology, communities, bridges, automation, health score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot.Read(args[0])
		if err != nil {
			return err
		}

		g := graph.FromSnapshot(snap)
		if cmd.Flags().Changed("community") {
			g = g.FilterToCommunity(analyzeCommunity)
		}

		config := cfg.Analyzer()
		if cmd.Flags().Changed("top-n") {
			config.TopN = analyzeTopN
		}
		if cmd.Flags().Changed("hub-threshold") {
			config.HubThreshold = analyzeHubThreshold
		}
		if cmd.Flags().Changed("bot-threshold") {
			config.BotThreshold = analyzeBotThreshold
		}

		report := graph.Analyze(g, config)

		if analyzeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printReport(cmd.OutOrStdout(), report, g, &snap.Metadata)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().IntVar(&analyzeCommunity, "community", 0, "Scope analysis to members of this community id")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 10, "Minimum distinct partners to consider an account a hub")
	analyzeCmd.Flags().Float64Var(&analyzeBotThreshold, "bot-threshold", 0.7, "Bot score at which an account is reported as automated")
	rootCmd.AddCommand(analyzeCmd)
}

func label(g *graph.Graph, id string, max int) string {
	if n := g.Nodes[id]; n != nil && n.Label != "" {
		return truncLabel(n.Label, max)
	}
	return "?"
}

func printReport(w io.Writer, report *graph.AnalysisReport, g *graph.Graph, meta *snapshot.Metadata) {
	if meta.Search != "" {
		fmt.Fprintf(w, "\n  %q  collected %s, %s/%s interactions analyzed\n",
			meta.Search, humanize.Time(meta.DataCollectionDate),
			humanize.Comma(int64(meta.AnalyzedCount)), humanize.Comma(int64(meta.CollectedCount)))
	}

	// Health bar
	barLen := int(report.HealthScore * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Fprintf(w, "\n  Graph Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	fmt.Fprintf(w, "  breakdown: connectivity=%.2f components=%.2f authenticity=%.2f fragility=%.2f\n\n",
		report.HealthBreakdown.Connectivity,
		report.HealthBreakdown.Components,
		report.HealthBreakdown.Authenticity,
		report.HealthBreakdown.Fragility)

	// Topology
	t := report.Topology
	fmt.Fprintln(w, "  TOPOLOGY")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Accounts: %s  Edges: %s  Components: %d\n",
		humanize.Comma(int64(t.TotalNodes)), humanize.Comma(int64(t.TotalEdges)), t.NumComponents)
	fmt.Fprintf(w, "  Largest component: %d  Smallest: %d\n", t.LargestComponent, t.SmallestComponent)

	if t.OrphanCount > 0 {
		fmt.Fprintf(w, "  Orphans: %d accounts without partners\n", t.OrphanCount)
		limit := min(5, len(t.OrphanIDs))
		for _, id := range t.OrphanIDs[:limit] {
			fmt.Fprintf(w, "    - %s (%s)\n", truncID(id), label(g, id, 40))
		}
		if t.OrphanCount > limit {
			fmt.Fprintf(w, "    ... and %d more\n", t.OrphanCount-limit)
		}
	}

	fmt.Fprintln(w, "\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := max(int(math.Log2(float64(b.Count)))+2, 1)
			fmt.Fprintf(w, "    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	if len(t.Hubs) > 0 {
		fmt.Fprintln(w, "\n  Top hubs (partners > threshold):")
		for _, hub := range t.Hubs {
			fmt.Fprintf(w, "    %s partners=%d (in=%d, out=%d) size=%d  %s\n",
				truncID(hub.ID), hub.Degree, hub.InDegree, hub.OutDegree, hub.Size, truncLabel(hub.Label, 40))
		}
	}

	// Communities
	if len(t.Communities) > 0 {
		fmt.Fprintln(w, "\n  COMMUNITIES")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		fmt.Fprintf(w, "  %d communities, modularity %.3f\n", len(t.Communities), t.Modularity)
		limit := min(10, len(t.Communities))
		for _, c := range t.Communities[:limit] {
			fmt.Fprintf(w, "    #%-4d %4d members %4d internal edges  led by %s\n",
				c.ID, c.Members, c.Edges, label(g, c.Leader, 30))
		}
	}

	// Automation
	a := report.Automation
	if a.ScoredCount > 0 {
		fmt.Fprintln(w, "\n  AUTOMATION")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		fmt.Fprintf(w, "  %d of %d scored accounts look automated (%.0f%%)\n",
			a.SuspectedCount, a.ScoredCount, a.SuspectedShare*100)
		limit := min(10, len(a.Suspected))
		for _, b := range a.Suspected[:limit] {
			fmt.Fprintf(w, "    %s score=%.2f size=%d  %s\n", truncID(b.ID), b.BotScore, b.Size, truncLabel(b.Label, 40))
		}
	}

	// Bridges
	br := report.Bridges
	if br.APCount > 0 || br.BridgeCount > 0 || len(br.FragileConnections) > 0 {
		fmt.Fprintln(w, "\n  STRUCTURAL FRAGILITY")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		if br.APCount > 0 {
			fmt.Fprintf(w, "  %d articulation accounts (removal splits a component):\n", br.APCount)
			limit := min(10, len(br.ArticulationPoints))
			for _, ap := range br.ArticulationPoints[:limit] {
				fmt.Fprintf(w, "    %s (%d partners)  %s\n", truncID(ap.ID), ap.Partners, truncLabel(ap.Label, 40))
			}
		}
		if br.BridgeCount > 0 {
			fmt.Fprintf(w, "  %d bridge interactions (removal splits a component):\n", br.BridgeCount)
			limit := min(10, len(br.BridgeEdges))
			for _, be := range br.BridgeEdges[:limit] {
				fmt.Fprintf(w, "    %s -> %s\n", truncLabel(be.SourceLabel, 30), truncLabel(be.TargetLabel, 30))
			}
		}
		if len(br.FragileConnections) > 0 {
			fmt.Fprintf(w, "  %d fragile inter-community connections (<=2 edges):\n", len(br.FragileConnections))
			limit := min(10, len(br.FragileConnections))
			for _, fc := range br.FragileConnections[:limit] {
				s := ""
				if fc.CrossEdges != 1 {
					s = "s"
				}
				fmt.Fprintf(w, "    #%d <-> #%d (%d edge%s)\n", fc.CommunityA, fc.CommunityB, fc.CrossEdges, s)
			}
		}
	}

	fmt.Fprintln(w)
}
