package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/irsreport/irsreport/internal/anomaly"
)

// AnomalyPrinter is an anomaly sink that prints one styled line per
// finding. Inconsistencies and warnings show the warning icon, info
// notes are muted and hidden unless Verbose is set.
type AnomalyPrinter struct {
	W       io.Writer
	Verbose bool

	mu sync.Mutex
}

// NewAnomalyPrinter returns a printer writing to w.
func NewAnomalyPrinter(w io.Writer, verbose bool) *AnomalyPrinter {
	return &AnomalyPrinter{W: w, Verbose: verbose}
}

// Report implements anomaly.Sink.
func (p *AnomalyPrinter) Report(a anomaly.Anomaly) {
	line := FormatAnomaly(a)
	if line == "" || (a.Severity == anomaly.Info && !p.Verbose) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.W, line)
}

// FormatAnomaly renders a as a single styled line.
func FormatAnomaly(a anomaly.Anomaly) string {
	subject := a.Message
	if a.Key != "" {
		subject = RenderAccent(a.Key) + ": " + a.Message
	}
	phase := RenderMuted("[" + a.Phase + "]")

	switch a.Severity {
	case anomaly.Inconsistency:
		return RenderWarnIcon() + " " + phase + " " + subject
	case anomaly.Warning:
		return RenderWarnIcon() + " " + phase + " " + RenderWarn(a.Severity.String()) + " " + subject
	default:
		return RenderInfoIcon() + " " + phase + " " + RenderMuted(subject)
	}
}
