package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/links"
	"github.com/irsreport/irsreport/internal/textconv"
	"github.com/irsreport/irsreport/internal/types"
)

// Summary prefixes required on features and policies.
const (
	FeaturePrefix = "Feature:"
	PolicyPrefix  = "Policy:"
)

// DefaultNoEpicName is the epic name given to stories without an epic.
const DefaultNoEpicName = "No epic"

// EffortParser converts effort text into days.
type EffortParser func(text string) (float64, error)

// Options configures Assemble. The zero value is usable.
type Options struct {
	// Fields lists the recognized field names. Fields outside the list are
	// not read. Empty means types.DefaultFields().
	Fields []string

	// UnknownRelations decides what happens to unrecognized link
	// descriptions. Empty means links.UnknownWarn.
	UnknownRelations links.UnknownPolicy

	// NoEpicName names the group of stories that have no epic.
	NoEpicName string

	// Normalizer converts summary and description markup. Nil means HTML.
	Normalizer textconv.Normalizer

	// Effort parses feature effort text. Nil accepts plain non-negative numbers.
	Effort EffortParser

	Sink anomaly.Sink
}

func (o Options) withDefaults() Options {
	if len(o.Fields) == 0 {
		o.Fields = types.DefaultFields()
	}
	if o.UnknownRelations == "" {
		o.UnknownRelations = links.UnknownWarn
	}
	if o.NoEpicName == "" {
		o.NoEpicName = DefaultNoEpicName
	}
	if o.Normalizer == nil {
		o.Normalizer = textconv.HTML{}
	}
	if o.Effort == nil {
		o.Effort = parsePlainDays
	}
	if o.Sink == nil {
		o.Sink = anomaly.Discard
	}
	return o
}

func parsePlainDays(text string) (float64, error) {
	days, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return 0, fmt.Errorf("non-finite effort %v", days)
	}
	if days < 0 {
		return 0, fmt.Errorf("negative effort %v", days)
	}
	return days, nil
}

type assembler struct {
	opts   Options
	fields map[string]bool
	epics  map[string]string // epic key -> summary
}

// Assemble classifies and normalizes records, resolves epic names, derives
// user story groups and precomputes related-issue text.
func Assemble(records []types.RawIssue, opts Options) (*Graph, error) {
	a := &assembler{opts: opts.withDefaults()}
	a.fields = make(map[string]bool, len(a.opts.Fields))
	for _, f := range a.opts.Fields {
		a.fields[f] = true
	}
	if !a.fields[types.FieldKey] || !a.fields[types.FieldType] {
		return nil, fmt.Errorf("field list must include %q and %q", types.FieldKey, types.FieldType)
	}

	var features, policies, stories, epics []*types.Issue
	seen := make(map[string]bool, len(records))
	epicRefs := make(map[*types.Issue]string)

	for i := range records {
		r := &records[i]
		if strings.TrimSpace(r.Key) == "" {
			return nil, fmt.Errorf("record %d: %w", i+1, ErrMissingKey)
		}
		if seen[r.Key] {
			anomaly.Reportf(a.opts.Sink, anomaly.Warning, anomaly.PhaseAssemble, r.Key,
				"duplicate record, keeping the first")
			continue
		}
		seen[r.Key] = true

		issue, err := a.issue(r, i+1)
		if err != nil {
			return nil, err
		}
		switch issue.Kind {
		case types.KindFeature:
			features = append(features, issue)
		case types.KindPolicy:
			policies = append(policies, issue)
		case types.KindUserStory:
			stories = append(stories, issue)
			epicRefs[issue] = r.EpicLink
		case types.KindEpic:
			epics = append(epics, issue)
		}
	}

	g := New(features, policies, stories, epics)

	a.epics = make(map[string]string, len(epics))
	for _, e := range epics {
		a.epics[e.Key] = e.Summary
	}
	for _, s := range stories {
		a.resolveEpic(s, epicRefs[s])
	}

	for _, issue := range features {
		a.storyGroups(g, issue)
	}
	for _, issue := range policies {
		a.storyGroups(g, issue)
	}

	for _, issue := range g.All() {
		issue.Related, issue.RelatedText = Related(issue)
	}
	return g, nil
}

// text returns the raw value of a recognized field, or the placeholder
// used when the source did not deliver it.
func (a *assembler) text(r *types.RawIssue, field, value string) string {
	if !a.fields[field] {
		return ""
	}
	if r.IsMissing(field) {
		return "FIXME - missing " + field
	}
	return value
}

func (a *assembler) issue(r *types.RawIssue, ordinal int) (*types.Issue, error) {
	kind, ok := types.KindFromTrackerType(r.Type)
	if !ok {
		return nil, &UnknownIssueTypeError{Key: r.Key, Type: r.Type}
	}

	issue := types.NewIssue(r.Key, kind)
	issue.Ordinal = ordinal
	issue.Status = a.text(r, types.FieldStatus, r.Status)
	issue.Component = a.text(r, types.FieldComponent, r.Component)
	issue.URL = a.text(r, types.FieldLink, r.Link)

	summary := a.opts.Normalizer.ToPlain(a.text(r, types.FieldSummary, r.Summary))
	switch kind {
	case types.KindFeature, types.KindPolicy:
		prefix := FeaturePrefix
		if kind == types.KindPolicy {
			prefix = PolicyPrefix
		}
		stripped, ok := textconv.StripPrefix(summary, prefix)
		if !ok {
			return nil, &MalformedSummaryError{Key: r.Key, Kind: kind, Prefix: prefix, Summary: summary}
		}
		summary = stripped
	}
	issue.Summary = summary

	description := a.opts.Normalizer.ToPlain(a.text(r, types.FieldDescription, r.Description))
	if description == "" {
		description = summary
	}
	issue.Description = textconv.EnsureTerminal(description)

	if kind.HasPriority() {
		if !a.fields[types.FieldPriority] || r.IsMissing(types.FieldPriority) {
			return nil, &MissingPriorityError{Key: r.Key, Kind: kind}
		}
		p, err := types.ParsePriority(strings.TrimSpace(r.Priority))
		if err != nil {
			return nil, &MissingPriorityError{Key: r.Key, Kind: kind, Value: r.Priority}
		}
		issue.Priority = p
	}

	if a.fields[types.FieldIssueLinks] {
		if err := a.links(issue, r.Links); err != nil {
			return nil, err
		}
	}

	if kind == types.KindFeature && strings.TrimSpace(r.Effort) != "" {
		days, err := a.opts.Effort(r.Effort)
		if err != nil {
			anomaly.Reportf(a.opts.Sink, anomaly.Warning, anomaly.PhaseEffort, r.Key,
				"unreadable effort estimate %q treated as missing: %v", r.Effort, err)
		} else {
			issue.EffortDays = &days
		}
	}
	return issue, nil
}

func (a *assembler) links(issue *types.Issue, raw []types.RawLink) error {
	for _, group := range raw {
		kind, err := links.Classify(group.Description)
		if err == nil {
			for _, target := range group.Targets {
				issue.Links.Add(kind, target)
			}
			continue
		}

		var ue *links.UnrecognizedError
		if !errors.As(err, &ue) {
			return err
		}
		switch a.opts.UnknownRelations {
		case links.UnknownError:
			return fmt.Errorf("%s: %w", issue.Key, err)
		case links.UnknownDrop:
			anomaly.Reportf(a.opts.Sink, anomaly.Warning, anomaly.PhaseAssemble, issue.Key,
				"unrecognized relation %q, %d link(s) dropped", group.Description, len(group.Targets))
		default:
			label := links.TranslateLabel(group.Description)
			anomaly.Reportf(a.opts.Sink, anomaly.Warning, anomaly.PhaseAssemble, issue.Key,
				"unrecognized relation %q, kept as %q", group.Description, label)
			if issue.ExtraLinks == nil {
				issue.ExtraLinks = make(map[string][]string)
			}
			for _, target := range group.Targets {
				if !contains(issue.ExtraLinks[label], target) {
					issue.ExtraLinks[label] = append(issue.ExtraLinks[label], target)
				}
			}
		}
	}
	return nil
}

// resolveEpic names a story's epic. Some Jira versions put literal template
// text such as $xmlutils.escape("Search") in the epic link field instead of
// a key; that text is used verbatim as the epic name.
func (a *assembler) resolveEpic(story *types.Issue, ref string) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		story.EpicName = a.opts.NoEpicName
	case types.IsIssueKey(ref):
		story.EpicKey = ref
		if name, ok := a.epics[ref]; ok && name != "" {
			story.EpicName = name
			return
		}
		story.EpicName = ref
		anomaly.Reportf(a.opts.Sink, anomaly.Warning, anomaly.PhaseAssemble, story.Key,
			"epic %s not found, using key as epic name", ref)
	default:
		story.EpicName = ref
	}
}

// storyGroups keeps only live reliance targets on a feature or policy and
// records the epic names of its dependent stories.
func (a *assembler) storyGroups(g *Graph, issue *types.Issue) {
	targets := issue.Links[types.ReliedUponBy]
	if len(targets) == 0 {
		return
	}

	keep := targets[:0:0]
	names := make(map[string]bool)
	for _, key := range targets {
		target, ok := g.Lookup(key)
		switch {
		case !ok:
			// Unresolvable anywhere; reconciliation reports it.
			keep = append(keep, key)
		case target.Kind == types.KindUserStory:
			keep = append(keep, key)
			names[target.EpicName] = true
		case issue.Kind == types.KindPolicy && target.Kind == types.KindFeature:
			keep = append(keep, key)
		default:
			anomaly.Reportf(a.opts.Sink, anomaly.Warning, anomaly.PhaseAssemble, issue.Key,
				"non-story %s linked from %s, link ignored", key, issue.Key)
		}
	}
	if len(keep) == 0 {
		delete(issue.Links, types.ReliedUponBy)
	} else {
		issue.Links[types.ReliedUponBy] = keep
	}

	for name := range names {
		issue.Links.Add(types.UserStoryGroups, name)
	}
	sort.Strings(issue.Links[types.UserStoryGroups])
}

// Related computes the related-issue display of an issue: one group per
// relation label in alphabetical order, targets in numeric key order.
func Related(issue *types.Issue) ([]types.RelatedGroup, string) {
	groups := make([]types.RelatedGroup, 0, len(issue.Links)+len(issue.ExtraLinks))
	for _, kind := range types.RelationKinds() {
		targets := issue.Links[kind]
		if len(targets) == 0 {
			continue
		}
		groups = append(groups, types.RelatedGroup{
			Label: kind.Label(),
			Keys:  sortedKeys(targets),
			Names: kind == types.UserStoryGroups,
		})
	}
	for label, targets := range issue.ExtraLinks {
		if len(targets) == 0 {
			continue
		}
		groups = append(groups, types.RelatedGroup{Label: label, Keys: sortedKeys(targets)})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Label < groups[j].Label })

	lines := make([]string, len(groups))
	for i, grp := range groups {
		lines[i] = grp.Label + ": " + strings.Join(grp.Keys, ", ")
	}
	return groups, strings.Join(lines, "\n")
}

func sortedKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := types.KeyNumber(out[i]), types.KeyNumber(out[j])
		if ni != nj {
			return ni < nj
		}
		return out[i] < out[j]
	})
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
