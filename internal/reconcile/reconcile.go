// Package reconcile makes issue priorities consistent with the dependency
// graph.
//
// Priority is authored on user stories. Features and policies inherit the
// highest priority of the stories (and, for policies, features) that rely on
// them. A second pass checks each story against the lowest priority of what
// it relies on. The first pass corrects by default, the second only reports.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/graph"
	"github.com/irsreport/irsreport/internal/types"
)

// Policy selects which passes may rewrite priorities.
type Policy struct {
	ModifyFeatures bool `mapstructure:"modify_features" toml:"modify_features"`
	ModifyPolicies bool `mapstructure:"modify_policies" toml:"modify_policies"`
	ModifyStories  bool `mapstructure:"modify_stories" toml:"modify_stories"`
}

// DefaultPolicy corrects features and policies and only reports stories.
func DefaultPolicy() Policy {
	return Policy{ModifyFeatures: true, ModifyPolicies: true, ModifyStories: false}
}

// DanglingReferenceError is returned when a reliance link points at a key
// that none of the searched collections contain.
type DanglingReferenceError struct {
	From     string
	Target   string
	Searched []types.Kind
}

func (e *DanglingReferenceError) Error() string {
	kinds := make([]string, len(e.Searched))
	for i, k := range e.Searched {
		kinds[i] = string(k)
	}
	return fmt.Sprintf("%s: cannot find %s among %s", e.From, e.Target, strings.Join(kinds, ", "))
}

// Inconsistency is a priority that disagreed with the inferred one.
type Inconsistency struct {
	Key       string         `json:"key"`
	Phase     string         `json:"phase"`
	Actual    types.Priority `json:"actual"`
	Inferred  types.Priority `json:"inferred"`
	Corrected bool           `json:"corrected"`
}

// Correction is a priority rewrite.
type Correction struct {
	Key   string         `json:"key"`
	Phase string         `json:"phase"`
	From  types.Priority `json:"from"`
	To    types.Priority `json:"to"`
}

// Result collects what a reconciliation found and changed.
type Result struct {
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Corrections     []Correction    `json:"corrections"`
}

func (r *Result) merge(other Result) {
	r.Inconsistencies = append(r.Inconsistencies, other.Inconsistencies...)
	r.Corrections = append(r.Corrections, other.Corrections...)
}

// Engine runs the reconciliation passes over a graph.
type Engine struct {
	Policy Policy
	Sink   anomaly.Sink

	// OnMessage receives progress lines (optional).
	OnMessage func(msg string)
}

// New creates an engine with the given policy, reporting to sink.
func New(policy Policy, sink anomaly.Sink) *Engine {
	return &Engine{Policy: policy, Sink: sink}
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

// Run executes both passes in order: features, policies, then stories.
func (e *Engine) Run(g *graph.Graph) (Result, error) {
	res, err := e.InferFeaturePolicyPriorities(g)
	if err != nil {
		return res, err
	}
	stories, err := e.CheckStoryPriorities(g)
	res.merge(stories)
	return res, err
}

// InferFeaturePolicyPriorities raises each feature, then each policy, to the
// highest priority among its dependents. Policies are processed after
// features so they see corrected feature priorities.
func (e *Engine) InferFeaturePolicyPriorities(g *graph.Graph) (Result, error) {
	var res Result

	e.msg("Checking/inferring feature priorities")
	searched := []types.Kind{types.KindUserStory}
	if err := e.infer(g.Features, g.Index(searched...), searched, anomaly.PhaseFeatures, e.Policy.ModifyFeatures, &res); err != nil {
		return res, err
	}

	e.msg("Checking/inferring policy priorities")
	searched = []types.Kind{types.KindUserStory, types.KindFeature}
	if err := e.infer(g.Policies, g.Index(searched...), searched, anomaly.PhasePolicies, e.Policy.ModifyPolicies, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) infer(issues []*types.Issue, index map[string]*types.Issue, searched []types.Kind,
	phase string, modify bool, res *Result) error {
	for _, issue := range issues {
		targets := issue.Links[types.ReliedUponBy]
		if len(targets) == 0 {
			anomaly.Reportf(e.Sink, anomaly.Info, phase, issue.Key,
				"not relied upon by any issue, no dependents found, treating as %s", types.PriorityLow)
			continue
		}

		inferred, err := aggregate(issue.Key, targets, index, searched, types.MaxPriority)
		if err != nil {
			return err
		}

		switch {
		case issue.Priority < inferred:
			inc := Inconsistency{Key: issue.Key, Phase: phase, Actual: issue.Priority, Inferred: inferred, Corrected: modify}
			res.Inconsistencies = append(res.Inconsistencies, inc)
			if modify {
				anomaly.Reportf(e.Sink, anomaly.Inconsistency, phase, issue.Key,
					"priority %s is lower than inferred priority %s, changed %s -> %s",
					issue.Priority, inferred, issue.Priority, inferred)
				res.Corrections = append(res.Corrections, Correction{Key: issue.Key, Phase: phase, From: issue.Priority, To: inferred})
				issue.Priority = inferred
			} else {
				anomaly.Reportf(e.Sink, anomaly.Inconsistency, phase, issue.Key,
					"priority %s is lower than inferred priority %s", issue.Priority, inferred)
			}
		case issue.Priority > inferred:
			anomaly.Reportf(e.Sink, anomaly.Info, phase, issue.Key,
				"priority %s is higher than inferred priority %s", issue.Priority, inferred)
		}
	}
	return nil
}

// CheckStoryPriorities compares each story with the lowest priority among
// the features and policies it relies on. A story is never raised; it is
// lowered only when the policy allows it.
func (e *Engine) CheckStoryPriorities(g *graph.Graph) (Result, error) {
	var res Result

	e.msg("Checking story priorities")
	phase := anomaly.PhaseStories
	searched := []types.Kind{types.KindFeature, types.KindPolicy}
	index := g.Index(searched...)

	for _, story := range g.Stories {
		targets := story.Links[types.RelationReliesOn]
		if len(targets) == 0 {
			anomaly.Reportf(e.Sink, anomaly.Info, phase, story.Key,
				"does not rely on any feature or policy, treating as %s", types.PriorityLow)
			continue
		}

		inferred, err := aggregate(story.Key, targets, index, searched, types.MinPriority)
		if err != nil {
			return res, err
		}

		switch {
		case story.Priority > inferred:
			modify := e.Policy.ModifyStories
			res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
				Key: story.Key, Phase: phase, Actual: story.Priority, Inferred: inferred, Corrected: modify,
			})
			if modify {
				anomaly.Reportf(e.Sink, anomaly.Inconsistency, phase, story.Key,
					"priority %s is higher than inferred priority %s, changed %s -> %s",
					story.Priority, inferred, story.Priority, inferred)
				res.Corrections = append(res.Corrections, Correction{Key: story.Key, Phase: phase, From: story.Priority, To: inferred})
				story.Priority = inferred
			} else {
				anomaly.Reportf(e.Sink, anomaly.Inconsistency, phase, story.Key,
					"priority %s is higher than inferred priority %s", story.Priority, inferred)
			}
		case story.Priority < inferred:
			anomaly.Reportf(e.Sink, anomaly.Info, phase, story.Key,
				"priority %s is lower than inferred priority %s", story.Priority, inferred)
		}
	}
	return res, nil
}

// aggregate folds the priorities of targets with pick. Every target must be
// present in index.
func aggregate(from string, targets []string, index map[string]*types.Issue, searched []types.Kind,
	pick func(a, b types.Priority) types.Priority) (types.Priority, error) {
	var out types.Priority
	for i, key := range targets {
		t, ok := index[key]
		if !ok {
			return 0, &DanglingReferenceError{From: from, Target: key, Searched: searched}
		}
		if i == 0 {
			out = t.Priority
			continue
		}
		out = pick(out, t.Priority)
	}
	return out, nil
}
