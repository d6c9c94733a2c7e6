// Package types defines core data structures for the irsreport pipeline.
package types

import (
	"fmt"
	"regexp"
	"strconv"
)

// Priority is the urgency tier of a feature, policy or user story.
// Higher values are more urgent.
type Priority int

// Priority tiers
const (
	PriorityLow      Priority = 1
	PriorityMajor    Priority = 2
	PriorityCritical Priority = 3
)

// Priorities returns all tiers, highest first.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityMajor, PriorityLow}
}

// ParsePriority converts a tracker priority name. Only the exact names
// "Critical", "Major" and "Low" are accepted.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "Critical":
		return PriorityCritical, nil
	case "Major":
		return PriorityMajor, nil
	case "Low":
		return PriorityLow, nil
	}
	return 0, fmt.Errorf("unknown priority %q", name)
}

// IsValid checks if the priority is one of the known tiers.
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityMajor:
		return "Major"
	case PriorityLow:
		return "Low"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// MaxPriority returns the more urgent of a and b.
func MaxPriority(a, b Priority) Priority {
	if a > b {
		return a
	}
	return b
}

// MinPriority returns the less urgent of a and b.
func MinPriority(a, b Priority) Priority {
	if a < b {
		return a
	}
	return b
}

// Kind is the modeled category of an issue.
type Kind string

// Issue kinds
const (
	KindFeature   Kind = "Feature"
	KindPolicy    Kind = "Policy"
	KindUserStory Kind = "User story"
	KindEpic      Kind = "Epic"
)

// Raw tracker type names for each kind.
const (
	TrackerTypeFeature   = "New Feature"
	TrackerTypePolicy    = "Policy Question"
	TrackerTypeUserStory = "User Story"
	TrackerTypeEpic      = "Epic"
)

// KindFromTrackerType maps a tracker issue type name onto a Kind.
// The second return value is false for unmodeled types.
func KindFromTrackerType(name string) (Kind, bool) {
	switch name {
	case TrackerTypeFeature:
		return KindFeature, true
	case TrackerTypePolicy:
		return KindPolicy, true
	case TrackerTypeUserStory:
		return KindUserStory, true
	case TrackerTypeEpic:
		return KindEpic, true
	}
	return "", false
}

// HasPriority reports whether issues of this kind carry a required priority.
func (k Kind) HasPriority() bool {
	return k == KindFeature || k == KindPolicy || k == KindUserStory
}

// RelationKind is the canonical direction of a link between two issues.
type RelationKind int

// Relation kinds. UserStoryGroups is synthesized, never read from a tracker.
const (
	RelatesTo RelationKind = iota + 1
	ReliedUponBy
	RelationReliesOn
	UserStoryGroups
)

// Label returns the display label used in related-issue text.
func (r RelationKind) Label() string {
	switch r {
	case RelatesTo:
		return "Is related to"
	case ReliedUponBy:
		return "Is relied upon by"
	case RelationReliesOn:
		return "Relies on"
	case UserStoryGroups:
		return "User story groups"
	}
	return fmt.Sprintf("Relation(%d)", int(r))
}

func (r RelationKind) String() string { return r.Label() }

// RelationKinds returns every relation kind in declaration order.
func RelationKinds() []RelationKind {
	return []RelationKind{RelatesTo, ReliedUponBy, RelationReliesOn, UserStoryGroups}
}

// Links maps a relation kind to an ordered set of target keys (or, for
// UserStoryGroups, epic names).
type Links map[RelationKind][]string

// Add appends target under kind unless it is already present.
func (l Links) Add(kind RelationKind, target string) {
	for _, existing := range l[kind] {
		if existing == target {
			return
		}
	}
	l[kind] = append(l[kind], target)
}

// Has reports whether any targets are recorded for kind.
func (l Links) Has(kind RelationKind) bool {
	return len(l[kind]) > 0
}

// RelatedGroup is one line of the related-issues display: a label and its
// targets in numeric key order.
type RelatedGroup struct {
	Label string   `json:"label" yaml:"label"`
	Keys  []string `json:"keys" yaml:"keys"`
	// Names is true when Keys hold epic names rather than issue keys.
	Names bool `json:"names,omitempty" yaml:"names,omitempty"`
}

// Issue is one normalized feature, policy, user story or epic.
type Issue struct {
	Key         string   `json:"key"`
	Number      int      `json:"number"`
	Ordinal     int      `json:"ordinal"` // 1-based position in the snapshot
	Kind        Kind     `json:"kind"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
	Component   string   `json:"component,omitempty"`
	URL         string   `json:"url,omitempty"`

	// User stories only
	EpicKey  string `json:"epic_key,omitempty"`
	EpicName string `json:"epic_name,omitempty"`

	Links Links `json:"links,omitempty"`
	// ExtraLinks holds links whose relation was not recognized but kept
	// under their translated label. Never used for reconciliation.
	ExtraLinks map[string][]string `json:"extra_links,omitempty"`

	// Features only; nil when no estimate was recorded.
	EffortDays *float64 `json:"effort_days,omitempty"`

	Related     []RelatedGroup `json:"related,omitempty"`
	RelatedText string         `json:"related_text,omitempty"`
}

// NewIssue creates an issue with its numeric key part filled in.
func NewIssue(key string, kind Kind) *Issue {
	return &Issue{
		Key:    key,
		Number: KeyNumber(key),
		Kind:   kind,
		Links:  make(Links),
	}
}

var keyNumberRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-(\d+)`)

// KeyNumber returns the numeric part of an issue key such as "IRS-42",
// or 0 if the key is not in <PROJECT>-<number> form.
func KeyNumber(key string) int {
	m := keyNumberRe.FindStringSubmatch(key)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

var keyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-\d+$`)

// IsIssueKey reports whether s is exactly a tracker issue key.
func IsIssueKey(s string) bool {
	return keyRe.MatchString(s)
}

// RawLink is one group of linked issues as delivered by the tracker:
// the free-text relation description and its target keys.
type RawLink struct {
	Description string   `json:"description" yaml:"description"`
	Targets     []string `json:"targets" yaml:"targets"`
}

// Recognized raw field names. These match the Jira issue view field names.
const (
	FieldKey         = "key"
	FieldType        = "type"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldLink        = "link"
	FieldComponent   = "component"
	FieldPriority    = "priority"
	FieldIssueLinks  = "issuelinks"
	FieldCustom      = "allcustom"
)

// DefaultFields is the field list requested from the tracker.
func DefaultFields() []string {
	return []string{
		FieldKey, FieldType, FieldSummary, FieldDescription, FieldStatus,
		FieldLink, FieldComponent, FieldPriority, FieldIssueLinks, FieldCustom,
	}
}

// RawIssue is a single issue record as delivered by an ingestion source,
// before classification and normalization. Text fields may contain markup.
type RawIssue struct {
	Key         string    `json:"key" yaml:"key"`
	Type        string    `json:"type" yaml:"type"`
	Summary     string    `json:"summary" yaml:"summary"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string    `json:"status,omitempty" yaml:"status,omitempty"`
	Link        string    `json:"link,omitempty" yaml:"link,omitempty"`
	Component   string    `json:"component,omitempty" yaml:"component,omitempty"`
	Priority    string    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Links       []RawLink `json:"links,omitempty" yaml:"links,omitempty"`
	EpicLink    string    `json:"epic_link,omitempty" yaml:"epic_link,omitempty"`
	Effort      string    `json:"effort,omitempty" yaml:"effort,omitempty"`

	// Missing lists recognized fields the source did not deliver at all
	// (as opposed to delivering them empty).
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// IsMissing reports whether field was absent from the source record.
func (r *RawIssue) IsMissing(field string) bool {
	for _, f := range r.Missing {
		if f == field {
			return true
		}
	}
	return false
}
