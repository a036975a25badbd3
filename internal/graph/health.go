package graph

import (
	"math"
	"sort"
)

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Connectivity float64 `json:"connectivity"`
	Components   float64 `json:"components"`
	Authenticity float64 `json:"authenticity"`
	Fragility    float64 `json:"fragility"`
}

// SuspectedBot is an account scored at or above the bot threshold
type SuspectedBot struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	BotScore float64 `json:"bot_score"`
	Size     int     `json:"size"`
}

// AutomationReport summarizes classifier output across the graph
type AutomationReport struct {
	ScoredCount    int            `json:"scored_count"`
	SuspectedCount int            `json:"suspected_count"`
	SuspectedShare float64        `json:"suspected_share"` // of scored accounts
	Suspected      []SuspectedBot `json:"suspected"`
}

// AnalysisReport is the full analysis result
type AnalysisReport struct {
	HealthScore     float64           `json:"health_score"`
	HealthBreakdown HealthBreakdown   `json:"health_breakdown"`
	Topology        *TopologyReport   `json:"topology"`
	Automation      *AutomationReport `json:"automation"`
	Bridges         *BridgeReport     `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
	BotThreshold float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         50,
		BotThreshold: 0.7,
	}
}

// ComputeAutomation lists accounts whose bot score reaches threshold.
// Accounts without a score are not counted.
func ComputeAutomation(g *Graph, threshold float64, topN int) *AutomationReport {
	report := &AutomationReport{}
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.BotScore < 0 {
			continue
		}
		report.ScoredCount++
		if n.BotScore >= threshold {
			report.Suspected = append(report.Suspected, SuspectedBot{ID: id, Label: n.Label, BotScore: n.BotScore, Size: n.Size})
		}
	}
	report.SuspectedCount = len(report.Suspected)
	if report.ScoredCount > 0 {
		report.SuspectedShare = float64(report.SuspectedCount) / float64(report.ScoredCount)
	}
	sort.SliceStable(report.Suspected, func(i, j int) bool {
		return report.Suspected[i].BotScore > report.Suspected[j].BotScore
	})
	if len(report.Suspected) > topN {
		report.Suspected = report.Suspected[:topN]
	}
	return report
}

// Analyze runs all analyses and computes a composite health score
func Analyze(g *Graph, config *AnalyzerConfig) *AnalysisReport {
	topology := ComputeTopology(g, config.HubThreshold, config.TopN)
	automation := ComputeAutomation(g, config.BotThreshold, config.TopN)
	bridges := ComputeBridges(g)

	total := float64(topology.TotalNodes)

	var connectivity, components, authenticity, fragility float64
	if total > 0 {
		connectivity = clamp(1.0-math.Min(float64(topology.OrphanCount)/total, 0.2)*5.0, 0, 1)
		fragility = clamp(1.0-math.Min(float64(bridges.APCount)/total, 0.05)*20.0, 0, 1)
		// a graph nobody scored is not penalized
		authenticity = clamp(1.0-math.Min(automation.SuspectedShare, 0.25)*4.0, 0, 1)
	}
	if topology.NumComponents > 0 {
		components = clamp(1.0/float64(topology.NumComponents), 0, 1)
	}

	healthScore := 0.30*connectivity + 0.25*components + 0.25*authenticity + 0.20*fragility

	return &AnalysisReport{
		HealthScore: healthScore,
		HealthBreakdown: HealthBreakdown{
			Connectivity: connectivity,
			Components:   components,
			Authenticity: authenticity,
			Fragility:    fragility,
		},
		Topology:   topology,
		Automation: automation,
		Bridges:    bridges,
	}
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
