package graph

import (
	"errors"
	"fmt"

	"github.com/irsreport/irsreport/internal/types"
)

// ErrMissingKey is returned for a record that carries no issue key.
var ErrMissingKey = errors.New("record has no key")

// UnknownIssueTypeError is returned when a record's type is not one of the
// modeled kinds.
type UnknownIssueTypeError struct {
	Key  string
	Type string
}

func (e *UnknownIssueTypeError) Error() string {
	return fmt.Sprintf("%s: unexpected issue type %q", e.Key, e.Type)
}

// MalformedSummaryError is returned when a Feature or Policy summary lacks
// its required prefix.
type MalformedSummaryError struct {
	Key     string
	Kind    types.Kind
	Prefix  string
	Summary string
}

func (e *MalformedSummaryError) Error() string {
	return fmt.Sprintf("%s: is %s but summary %q lacks prefix %q", e.Key, e.Kind, e.Summary, e.Prefix)
}

// MissingPriorityError is returned when an issue that requires a priority
// has none, or has one outside the known tiers.
type MissingPriorityError struct {
	Key   string
	Kind  types.Kind
	Value string
}

func (e *MissingPriorityError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s has no priority", e.Key, e.Kind)
	}
	return fmt.Sprintf("%s: %s has bad priority %q", e.Key, e.Kind, e.Value)
}
