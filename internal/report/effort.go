package report

import (
	"github.com/irsreport/irsreport/internal/types"
)

// EffortTier sums the effort estimates of one priority tier.
type EffortTier struct {
	Priority  types.Priority `json:"priority"`
	TotalDays float64        `json:"total_days"`
	Count     int            `json:"count"`
	Missing   []string       `json:"missing"`
}

// Effort is the per-tier effort breakdown and its totals.
type Effort struct {
	Tiers     []EffortTier `json:"tiers"`
	TotalDays float64      `json:"total_days"`
	Count     int          `json:"count"`
	Missing   int          `json:"missing"`
}

// AggregateEffort sums effort per priority tier, highest tier first. Issues
// without an estimate are listed in Missing, in numeric key order, and
// excluded from the sum.
func AggregateEffort(features []*types.Issue) Effort {
	tiers := types.Priorities()
	out := Effort{Tiers: make([]EffortTier, len(tiers))}
	pos := make(map[types.Priority]int, len(tiers))
	for i, p := range tiers {
		out.Tiers[i] = EffortTier{Priority: p, Missing: []string{}}
		pos[p] = i
	}

	for _, f := range SortByNumber(features) {
		i, ok := pos[f.Priority]
		if !ok {
			continue
		}
		tier := &out.Tiers[i]
		if f.EffortDays == nil {
			tier.Missing = append(tier.Missing, f.Key)
			out.Missing++
			continue
		}
		tier.TotalDays += *f.EffortDays
		tier.Count++
		out.TotalDays += *f.EffortDays
		out.Count++
	}
	return out
}

// Tier returns the tier for p.
func (e Effort) Tier(p types.Priority) (EffortTier, bool) {
	for _, t := range e.Tiers {
		if t.Priority == p {
			return t, true
		}
	}
	return EffortTier{}, false
}
