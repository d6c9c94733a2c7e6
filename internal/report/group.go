// Package report orders reconciled issues for rendering and aggregates
// feature effort.
package report

import (
	"sort"

	"github.com/irsreport/irsreport/internal/types"
)

// PriorityGroup is one priority tier of features or policies.
type PriorityGroup struct {
	Priority types.Priority `json:"priority"`
	Issues   []*types.Issue `json:"issues"`
}

// EpicGroup is the user stories sharing an epic name.
type EpicGroup struct {
	Name   string         `json:"name"`
	Issues []*types.Issue `json:"issues"`
}

func byNumber(a, b *types.Issue) bool {
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return a.Key < b.Key
}

// StorySortKey orders stories by priority descending, then numeric key.
func StorySortKey(issue *types.Issue) int {
	return (4-int(issue.Priority))*10000 + issue.Number
}

// GroupByPriority returns exactly three groups, Critical, Major then Low,
// each sorted by numeric key. Groups may be empty.
func GroupByPriority(issues []*types.Issue) []PriorityGroup {
	tiers := types.Priorities()
	groups := make([]PriorityGroup, len(tiers))
	pos := make(map[types.Priority]int, len(tiers))
	for i, p := range tiers {
		groups[i] = PriorityGroup{Priority: p, Issues: []*types.Issue{}}
		pos[p] = i
	}
	for _, issue := range issues {
		if i, ok := pos[issue.Priority]; ok {
			groups[i].Issues = append(groups[i].Issues, issue)
		}
	}
	for i := range groups {
		g := groups[i].Issues
		sort.SliceStable(g, func(a, b int) bool { return byNumber(g[a], g[b]) })
	}
	return groups
}

// GroupByEpic groups stories by epic name, names in lexicographic order,
// each group sorted by StorySortKey.
func GroupByEpic(stories []*types.Issue) []EpicGroup {
	byName := make(map[string][]*types.Issue)
	for _, s := range stories {
		byName[s.EpicName] = append(byName[s.EpicName], s)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]EpicGroup, 0, len(names))
	for _, name := range names {
		g := byName[name]
		sort.SliceStable(g, func(a, b int) bool {
			ka, kb := StorySortKey(g[a]), StorySortKey(g[b])
			if ka != kb {
				return ka < kb
			}
			return g[a].Key < g[b].Key
		})
		groups = append(groups, EpicGroup{Name: name, Issues: g})
	}
	return groups
}

// SortByNumber returns a copy of issues in numeric key order.
func SortByNumber(issues []*types.Issue) []*types.Issue {
	out := append([]*types.Issue(nil), issues...)
	sort.SliceStable(out, func(a, b int) bool { return byNumber(out[a], out[b]) })
	return out
}
