// Package pipeline runs one report: fetch raw records from a source,
// assemble the issue graph, reconcile priorities and build the ordered
// document the renderers consume.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/irsreport/irsreport/internal/anomaly"
	"github.com/irsreport/irsreport/internal/config"
	"github.com/irsreport/irsreport/internal/graph"
	"github.com/irsreport/irsreport/internal/jira"
	"github.com/irsreport/irsreport/internal/reconcile"
	"github.com/irsreport/irsreport/internal/report"
	"github.com/irsreport/irsreport/internal/telemetry"
	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

// Program is recorded in the report metadata.
const Program = "irsreport"

const scopeName = "github.com/irsreport/irsreport/pipeline"

// Options tunes a run. The zero value is usable.
type Options struct {
	// OnMessage receives progress lines (optional).
	OnMessage func(msg string)

	// Now returns the generation time. Nil means time.Now.
	Now func() time.Time
}

// Run fetches records from src and builds the report document.
func Run(ctx context.Context, cfg config.Config, src tracker.Source, sink anomaly.Sink) (*report.Document, error) {
	return RunWithOptions(ctx, cfg, src, sink, Options{})
}

// RunWithOptions is Run with progress reporting and a fixed clock.
func RunWithOptions(ctx context.Context, cfg config.Config, src tracker.Source, sink anomaly.Sink, opts Options) (*report.Document, error) {
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("irsreport.source", src.Name())))
	defer span.End()

	msg(opts, "Fetching issues from %s", src.DisplayName())
	records, err := src.Fetch(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("fetch from %s: %w", src.Name(), err))
	}
	msg(opts, "Fetched %d issues", len(records))

	doc, err := Process(ctx, cfg, src.Name(), records, sink, opts)
	if err != nil {
		return nil, fail(span, err)
	}
	return doc, nil
}

// Process builds the document from records that are already in hand
// (a snapshot, or a previous fetch).
func Process(ctx context.Context, cfg config.Config, source string, records []types.RawIssue,
	sink anomaly.Sink, opts Options) (*report.Document, error) {
	tracer := telemetry.Tracer(scopeName)
	collector := anomaly.NewCollector(sink)
	defer recordAnomalies(ctx, collector)

	_, span := tracer.Start(ctx, "pipeline.assemble",
		trace.WithAttributes(attribute.Int("irsreport.records", len(records))))
	msg(opts, "Assembling %d issues", len(records))
	g, err := graph.Assemble(records, graph.Options{
		Fields:           cfg.Fields,
		UnknownRelations: cfg.UnknownRelations,
		NoEpicName:       cfg.NoEpicName,
		Effort:           jira.ParseEffortDays,
		Sink:             collector,
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("assemble: %w", err))
	}
	span.SetAttributes(
		attribute.Int("irsreport.features", len(g.Features)),
		attribute.Int("irsreport.policies", len(g.Policies)),
		attribute.Int("irsreport.stories", len(g.Stories)),
		attribute.Int("irsreport.epics", len(g.Epics)),
	)
	span.End()

	_, span = tracer.Start(ctx, "pipeline.reconcile")
	engine := reconcile.New(cfg.Policy, collector)
	engine.OnMessage = opts.OnMessage
	result, err := engine.Run(g)
	if err != nil {
		return nil, fail(span, fmt.Errorf("reconcile: %w", err))
	}
	span.SetAttributes(
		attribute.Int("irsreport.inconsistencies", len(result.Inconsistencies)),
		attribute.Int("irsreport.corrections", len(result.Corrections)),
	)
	span.End()

	_, span = tracer.Start(ctx, "pipeline.build")
	defer span.End()
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	doc := report.Build(g, report.Meta{
		Name:       cfg.Name,
		Query:      cfg.Query,
		Program:    Program,
		Source:     source,
		RunID:      uuid.NewString(),
		Generated:  now(),
		ReportDate: cfg.ReportDate,
	})
	doc.Reconciliation = result
	doc.Anomalies = collector.All()
	return doc, nil
}

func msg(opts Options, format string, args ...interface{}) {
	if opts.OnMessage != nil {
		opts.OnMessage(fmt.Sprintf(format, args...))
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return err
}

func recordAnomalies(ctx context.Context, c *anomaly.Collector) {
	counter, err := telemetry.Meter(scopeName).Int64Counter("irsreport.anomalies",
		metric.WithDescription("Anomalies reported during a run, by severity"),
	)
	if err != nil {
		return
	}
	for sev, n := range c.Counts() {
		counter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("severity", sev.String())))
	}
}
