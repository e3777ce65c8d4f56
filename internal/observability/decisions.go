package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DecisionCounter counts gate decisions by outcome and marks them on the
// active request span.
type DecisionCounter struct {
	decisions metric.Int64Counter
}

// NewDecisionCounter creates the gate.decisions counter on the global meter
// provider.
func NewDecisionCounter() (*DecisionCounter, error) {
	meter := otel.Meter("ipgate/gate")

	decisions, err := meter.Int64Counter(
		"gate.decisions",
		metric.WithDescription("Number of admission decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &DecisionCounter{decisions: decisions}, nil
}

// RecordDecision implements gate.Observer.
func (c *DecisionCounter) RecordDecision(ctx context.Context, decision string) {
	attr := attribute.String("outcome", decision)
	c.decisions.Add(ctx, 1, metric.WithAttributes(attr))
	trace.SpanFromContext(ctx).AddEvent("gate.decision", trace.WithAttributes(attr))
}
