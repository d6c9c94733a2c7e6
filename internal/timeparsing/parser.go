// Package timeparsing parses the report date given on the command line.
//
// Expressions are tried in layers:
//  1. Compact offset from today (-1d, +2w, -3m, 1y)
//  2. Absolute date (2015-09-30, RFC3339)
//  3. Natural language (yesterday, last friday, in 3 days)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactDurationRe matches compact offsets: [+-]?(\d+)([dwmy])
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([dwmy])$`)

// ParseCompactDuration applies a compact offset such as "-1d" or "+2w" to now.
//
// Units: d = days, w = weeks, m = months, y = years. No sign means positive.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	switch matches[3] {
	case "w":
		return now.AddDate(0, 0, amount*7), nil
	case "m":
		return now.AddDate(0, amount, 0), nil
	case "y":
		return now.AddDate(amount, 0, 0), nil
	default:
		return now.AddDate(0, 0, amount), nil
	}
}

// IsCompactDuration returns true if the string matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseNaturalLanguage parses expressions such as "yesterday" or
// "next monday" relative to now.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}
	r, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("not a date expression: %q", s)
	}
	return r.Time, nil
}

// ParseRelativeTime tries each layer in order and returns the first match.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (try 2015-09-30, -1d or \"last friday\")", s)
}

// ParseReportDate returns the calendar day s names, at midnight in now's
// location. An empty s means today.
func ParseReportDate(s string, now time.Time) (time.Time, error) {
	t := now
	if strings.TrimSpace(s) != "" {
		var err error
		if t, err = ParseRelativeTime(s, now); err != nil {
			return time.Time{}, err
		}
		t = t.In(now.Location())
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
}
