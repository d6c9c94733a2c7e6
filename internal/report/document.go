package report

import (
	"time"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/graph"
	"github.com/irsreport/irsreport/internal/reconcile"
)

// Meta describes a report run.
type Meta struct {
	Name       string    `json:"name"`
	Query      string    `json:"query"`
	Program    string    `json:"program"`
	Source     string    `json:"source"`
	RunID      string    `json:"run_id"`
	Generated  time.Time `json:"generated"`
	ReportDate time.Time `json:"report_date"`
}

// EpicSummary lists an epic and how many stories it groups.
type EpicSummary struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Stories int    `json:"stories"`
}

// Document is everything a renderer needs, fully ordered. It is not
// modified after Build.
type Document struct {
	Meta Meta `json:"meta"`

	Features []PriorityGroup `json:"features"`
	Policies []PriorityGroup `json:"policies"`
	Stories  []EpicGroup     `json:"stories"`
	Epics    []EpicSummary   `json:"epics"`
	Effort   Effort          `json:"effort"`

	Reconciliation reconcile.Result  `json:"reconciliation"`
	Anomalies      []anomaly.Anomaly `json:"anomalies,omitempty"`

	keys map[string]bool
}

// Build groups and orders a reconciled graph.
func Build(g *graph.Graph, meta Meta) *Document {
	doc := &Document{
		Meta:     meta,
		Features: GroupByPriority(g.Features),
		Policies: GroupByPriority(g.Policies),
		Stories:  GroupByEpic(g.Stories),
		Effort:   AggregateEffort(g.Features),
		keys:     make(map[string]bool),
	}
	counts := g.EpicStoryCounts()
	for _, e := range SortByNumber(g.Epics) {
		doc.Epics = append(doc.Epics, EpicSummary{
			Key:     e.Key,
			Name:    e.Summary,
			URL:     e.URL,
			Stories: counts[e.Key],
		})
	}
	for _, issue := range g.All() {
		doc.keys[issue.Key] = true
	}
	return doc
}

// HasIssue reports whether key is one of the issues in the document.
func (d *Document) HasIssue(key string) bool {
	return d.keys[key]
}

// Issues returns the number of features, policies and stories.
func (d *Document) Issues() (features, policies, stories int) {
	for _, g := range d.Features {
		features += len(g.Issues)
	}
	for _, g := range d.Policies {
		policies += len(g.Issues)
	}
	for _, g := range d.Stories {
		stories += len(g.Issues)
	}
	return features, policies, stories
}
