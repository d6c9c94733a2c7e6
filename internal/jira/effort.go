package jira

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Jira's default working time.
const (
	HoursPerDay = 8
	DaysPerWeek = 5
)

var (
	durationPartRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(weeks?|wks?|w|days?|d|hours?|hrs?|h|minutes?|mins?|m)\b`)
	durationSepRe  = regexp.MustCompile(`(?i)^(?:[\s,]|and)*$`)
)

// ParseEffortDays converts an effort estimate to days. A plain number is
// already in days; otherwise Jira duration text such as "1w 2d 4h",
// "3 days" or "1 week, 2 days" is accepted, using 8 hour days and 5 day
// weeks.
func ParseEffortDays(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty effort")
	}

	if days, err := strconv.ParseFloat(text, 64); err == nil {
		if math.IsNaN(days) || math.IsInf(days, 0) {
			return 0, fmt.Errorf("non-finite effort %q", text)
		}
		if days < 0 {
			return 0, fmt.Errorf("negative effort %q", text)
		}
		return days, nil
	}

	matches := durationPartRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 || !durationSepRe.MatchString(durationPartRe.ReplaceAllString(text, "")) {
		return 0, fmt.Errorf("unrecognized effort %q", text)
	}

	var days float64
	for _, m := range matches {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized effort %q: %w", text, err)
		}
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "w"):
			days += n * DaysPerWeek
		case strings.HasPrefix(unit, "d"):
			days += n
		case strings.HasPrefix(unit, "h"):
			days += n / HoursPerDay
		default:
			days += n / (HoursPerDay * 60)
		}
	}
	return days, nil
}
