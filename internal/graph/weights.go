package graph

import "rtgraph/graphgen/internal/aggregate"

// DefaultAlpha balances connector rarity against raw interaction volume
const DefaultAlpha = 0.5

// ComputeWeights sets Weight on every edge of t:
//
//	weight = alpha/(in(s)+in(t)) + (1-alpha)*size/maxSize
//
// where in(x) sums the size of all edges targeting x. A zero denominator
// contributes 0. Weights are always derived from the whole table, so a merged
// table gets fresh weights rather than an average of old ones.
func ComputeWeights(t *aggregate.EdgeTable, alpha float64) {
	inSize := make(map[string]int)
	for i := range t.Entries {
		inSize[t.Entries[i].Target] += t.Entries[i].Size
	}
	maxSize := float64(t.MaxSize())

	for i := range t.Entries {
		e := &t.Entries[i]
		var rarity, volume float64
		if d := inSize[e.Source] + inSize[e.Target]; d > 0 {
			rarity = 1 / float64(d)
		}
		if maxSize > 0 {
			volume = float64(e.Size) / maxSize
		}
		e.Weight = alpha*rarity + (1-alpha)*volume
	}
}
