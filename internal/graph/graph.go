// Package graph assembles raw tracker records into the dependency graph of
// features, policies, user stories and epics.
//
// Assembly is a fixed sequence: records are classified and normalized,
// stories receive epic names, features and policies receive their user
// story groups, and every issue gets its related-issue display text. The
// resulting Graph is then handed to reconciliation.
package graph

import (
	"github.com/irsreport/irsreport/internal/types"
)

// Graph holds the four issue partitions, each in snapshot order, and a key
// index over all of them.
type Graph struct {
	Features []*types.Issue
	Policies []*types.Issue
	Stories  []*types.Issue
	Epics    []*types.Issue

	index map[string]*types.Issue
}

// New builds a graph from already-normalized issues. The key index is built
// once here; later lookups are constant time.
func New(features, policies, stories, epics []*types.Issue) *Graph {
	g := &Graph{
		Features: features,
		Policies: policies,
		Stories:  stories,
		Epics:    epics,
	}
	g.reindex()
	return g
}

func (g *Graph) reindex() {
	g.index = make(map[string]*types.Issue, len(g.Features)+len(g.Policies)+len(g.Stories)+len(g.Epics))
	for _, part := range [][]*types.Issue{g.Features, g.Policies, g.Stories, g.Epics} {
		for _, issue := range part {
			g.index[issue.Key] = issue
		}
	}
}

// Lookup returns the issue with the given key.
func (g *Graph) Lookup(key string) (*types.Issue, bool) {
	issue, ok := g.index[key]
	return issue, ok
}

// All returns every issue: features, policies, stories, then epics.
func (g *Graph) All() []*types.Issue {
	out := make([]*types.Issue, 0, len(g.index))
	out = append(out, g.Features...)
	out = append(out, g.Policies...)
	out = append(out, g.Stories...)
	return append(out, g.Epics...)
}

// Index returns a key index restricted to the given kinds.
func (g *Graph) Index(kinds ...types.Kind) map[string]*types.Issue {
	want := make(map[types.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := make(map[string]*types.Issue)
	for key, issue := range g.index {
		if want[issue.Kind] {
			out[key] = issue
		}
	}
	return out
}

// EpicStoryCounts returns the number of user stories linked to each epic key.
func (g *Graph) EpicStoryCounts() map[string]int {
	counts := make(map[string]int, len(g.Epics))
	for _, s := range g.Stories {
		if s.EpicKey != "" {
			counts[s.EpicKey]++
		}
	}
	return counts
}
