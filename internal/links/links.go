// Package links maps tracker relation descriptions onto the closed set of
// relation kinds the report understands.
package links

import (
	"errors"
	"fmt"
	"strings"

	"github.com/irsreport/irsreport/internal/types"
)

// ErrUnrecognizedRelation is wrapped by every UnrecognizedError.
var ErrUnrecognizedRelation = errors.New("unrecognized relation")

// UnrecognizedError reports a relation description outside the table.
type UnrecognizedError struct {
	Description string
}

func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized relation %q", e.Description)
}

func (e *UnrecognizedError) Unwrap() error { return ErrUnrecognizedRelation }

// RelationMap maps tracker relation descriptions (exact, case-sensitive)
// to relation kinds.
var RelationMap = map[string]types.RelationKind{
	"relates to":        types.RelatesTo,
	"is related to":     types.RelatesTo,
	"is relied upon by": types.ReliedUponBy,
	"relies on":         types.RelationReliesOn,
}

// Classify returns the relation kind for a tracker relation description.
// Unknown descriptions return an *UnrecognizedError.
func Classify(description string) (types.RelationKind, error) {
	if kind, ok := RelationMap[description]; ok {
		return kind, nil
	}
	return 0, &UnrecognizedError{Description: description}
}

// UnknownPolicy decides what happens to links whose relation is unrecognized.
type UnknownPolicy string

const (
	// UnknownError aborts assembly.
	UnknownError UnknownPolicy = "error"
	// UnknownWarn reports a warning and keeps the link under its translated label.
	UnknownWarn UnknownPolicy = "warn"
	// UnknownDrop reports a warning and discards the link.
	UnknownDrop UnknownPolicy = "drop"
)

// ParseUnknownPolicy validates a policy name. Empty means UnknownWarn.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch UnknownPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnknownWarn:
		return UnknownWarn, nil
	case UnknownError:
		return UnknownError, nil
	case UnknownDrop:
		return UnknownDrop, nil
	}
	return "", fmt.Errorf("invalid unknown-relation policy %q (valid: error, warn, drop)", s)
}

// TranslateLabel turns a raw relation description into a display label by
// upper-casing its first letter ("blocks" -> "Blocks").
func TranslateLabel(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return description
	}
	return strings.ToUpper(description[:1]) + description[1:]
}
