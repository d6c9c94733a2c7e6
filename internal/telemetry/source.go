package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

const sourceScopeName = "github.com/irsreport/irsreport/source"

// InstrumentedSource wraps a tracker.Source with a span and metrics around
// Fetch. Use WrapSource to create one.
type InstrumentedSource struct {
	tracker.Source
	tracer  trace.Tracer
	fetches metric.Int64Counter
	records metric.Int64Counter
	dur     metric.Float64Histogram
	errs    metric.Int64Counter
}

// WrapSource returns src decorated with OTel instrumentation.
// When telemetry is disabled, src is returned as-is.
func WrapSource(src tracker.Source) tracker.Source {
	if !Enabled() {
		return src
	}
	m := Meter(sourceScopeName)
	fetches, _ := m.Int64Counter("irsreport.source.fetches",
		metric.WithDescription("Source fetches executed"),
	)
	records, _ := m.Int64Counter("irsreport.source.records",
		metric.WithDescription("Raw issue records delivered by sources"),
	)
	dur, _ := m.Float64Histogram("irsreport.source.fetch.duration",
		metric.WithDescription("Source fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("irsreport.source.errors",
		metric.WithDescription("Source fetches that failed"),
	)
	return &InstrumentedSource{
		Source:  src,
		tracer:  Tracer(sourceScopeName),
		fetches: fetches,
		records: records,
		dur:     dur,
		errs:    errs,
	}
}

// Fetch traces and counts the wrapped source's Fetch.
func (s *InstrumentedSource) Fetch(ctx context.Context) ([]types.RawIssue, error) {
	attrs := []attribute.KeyValue{attribute.String("irsreport.source", s.Name())}
	ctx, span := s.tracer.Start(ctx, "source.Fetch",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	s.fetches.Add(ctx, 1, metric.WithAttributes(attrs...))
	start := time.Now()

	out, err := s.Source.Fetch(ctx)

	s.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
		return nil, err
	}
	span.SetAttributes(attribute.Int("irsreport.records", len(out)))
	s.records.Add(ctx, int64(len(out)), metric.WithAttributes(attrs...))
	return out, nil
}
