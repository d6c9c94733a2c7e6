// Package anomaly carries non-fatal findings from the assembler and the
// reconciliation engine to whoever is reporting on the run.
//
// Every finding has a severity. Inconsistencies (a priority that disagrees
// with what the dependency graph implies) are kept apart from informational
// notes and data warnings so that output never conflates them.
package anomaly

import (
	"fmt"
	"sync"
)

// Severity classifies an anomaly.
type Severity int

const (
	// Info is a note that needs no action (e.g. "no dependents found").
	Info Severity = iota
	// Warning is a data-quality problem that was worked around.
	Warning
	// Inconsistency is a priority that contradicts the dependency graph.
	Inconsistency
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Inconsistency:
		return "inconsistency"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText lets severities appear by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Phases that report anomalies.
const (
	PhaseAssemble = "assemble"
	PhaseFeatures = "features"
	PhasePolicies = "policies"
	PhaseStories  = "stories"
	PhaseEffort   = "effort"
)

// Anomaly is one reported finding.
type Anomaly struct {
	Severity Severity `json:"severity"`
	Phase    string   `json:"phase"`
	Key      string   `json:"key,omitempty"`
	Message  string   `json:"message"`
}

func (a Anomaly) String() string {
	if a.Key == "" {
		return fmt.Sprintf("[%s] %s", a.Severity, a.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", a.Severity, a.Key, a.Message)
}

// Sink receives anomalies as they are found.
type Sink interface {
	Report(a Anomaly)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(a Anomaly)

// Report calls f(a).
func (f SinkFunc) Report(a Anomaly) { f(a) }

// Discard is a sink that drops everything.
var Discard Sink = SinkFunc(func(Anomaly) {})

// Reportf builds and reports an anomaly. A nil sink is treated as Discard.
func Reportf(s Sink, sev Severity, phase, key, format string, args ...interface{}) {
	if s == nil {
		return
	}
	s.Report(Anomaly{
		Severity: sev,
		Phase:    phase,
		Key:      key,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Collector records every anomaly and optionally forwards it.
type Collector struct {
	mu      sync.Mutex
	items   []Anomaly
	forward Sink
}

// NewCollector returns a collector forwarding to next (may be nil).
func NewCollector(next Sink) *Collector {
	return &Collector{forward: next}
}

// Report records a and forwards it.
func (c *Collector) Report(a Anomaly) {
	c.mu.Lock()
	c.items = append(c.items, a)
	c.mu.Unlock()
	if c.forward != nil {
		c.forward.Report(a)
	}
}

// All returns a copy of everything collected, in report order.
func (c *Collector) All() []Anomaly {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Anomaly, len(c.items))
	copy(out, c.items)
	return out
}

// Filter returns collected anomalies with the given severity.
func (c *Collector) Filter(sev Severity) []Anomaly {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Anomaly
	for _, a := range c.items {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the number of collected anomalies with the given severity.
func (c *Collector) Count(sev Severity) int {
	return len(c.Filter(sev))
}

// Counts returns per-severity totals.
func (c *Collector) Counts() map[Severity]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[Severity]int, 3)
	for _, a := range c.items {
		counts[a.Severity]++
	}
	return counts
}
