package observability

import (
	"context"
	"time"

	"ipgate/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const storageInstrumentation = "ipgate/storage"

// InstrumentedStore wraps a storage.Store implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStore struct {
	inner    storage.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore creates a new store wrapper that records trace spans,
// operation latency histograms, and error counters for every store call.
// Client identifiers go on spans only, never on metric attributes.
func NewInstrumentedStore(inner storage.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer(storageInstrumentation)
	meter := otel.Meter(storageInstrumentation)

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	ctx, span := s.startSpan(ctx, "InsertRequestLog",
		attribute.String("client.id", clientID),
		attribute.String("client.zone", at.Location().String()),
	)
	start := time.Now()
	err := s.inner.InsertRequestLog(ctx, clientID, at)
	s.record(ctx, span, "InsertRequestLog", start, err)
	return err
}

func (s *InstrumentedStore) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	ctx, span := s.startSpan(ctx, "CountRequestLogs", attribute.String("client.id", clientID))
	start := time.Now()
	count, err := s.inner.CountRequestLogs(ctx, clientID, since)
	span.SetAttributes(attribute.Int("request_log.count", count))
	s.record(ctx, span, "CountRequestLogs", start, err)
	return count, err
}

func (s *InstrumentedStore) BanExists(ctx context.Context, clientID string) (bool, error) {
	ctx, span := s.startSpan(ctx, "BanExists", attribute.String("client.id", clientID))
	start := time.Now()
	banned, err := s.inner.BanExists(ctx, clientID)
	span.SetAttributes(attribute.Bool("client.banned", banned))
	s.record(ctx, span, "BanExists", start, err)
	return banned, err
}

func (s *InstrumentedStore) InsertBan(ctx context.Context, clientID string) error {
	ctx, span := s.startSpan(ctx, "InsertBan", attribute.String("client.id", clientID))
	start := time.Now()
	err := s.inner.InsertBan(ctx, clientID)
	s.record(ctx, span, "InsertBan", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
