// Package telemetry records deployment runs as OpenTelemetry spans: one
// root span per operation carrying the planned phases, one child span per
// phase. Spans are inert unless the embedder installs a tracer provider.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	PlanEventName      = "siteup.plan"
	PlanVersion        = "1"
	PlanVersionKey     = "siteup.plan.version"
	PlanJSONKey        = "siteup.plan.json"
	defaultOperationID = "operation"
)

// PlannedStep is one phase announced ahead of execution.
type PlannedStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Plan is the ordered set of phases an operation intends to run.
type Plan struct {
	Steps []PlannedStep `json:"steps"`
}

// Operation is an in-flight root span with its plan attached.
type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// EmitPlan starts the root span for an operation and attaches the plan as
// both an attribute and an event, so consumers can render pending phases
// before any of them start.
func EmitPlan(ctx context.Context, tracer trace.Tracer, operation string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("emit telemetry plan: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("emit telemetry plan: %w", err)
	}

	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = defaultOperationID
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("emit telemetry plan: marshal plan: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))
	span.AddEvent(PlanEventName, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))

	return &Operation{ctx: spanCtx, tracer: tracer, span: span}, nil
}

// Context returns the context carrying the root span.
func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// RunStep runs fn inside a child span named after the phase. The span is
// marked as errored when fn fails.
func (o *Operation) RunStep(ctx context.Context, id string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}

	stepID := strings.TrimSpace(id)
	if stepID == "" {
		return fmt.Errorf("run telemetry step: step id is required")
	}
	if o == nil || o.tracer == nil {
		return fn(ctx)
	}
	if ctx == nil {
		ctx = o.ctx
	}

	stepCtx, span := o.tracer.Start(ctx, stepID)
	defer span.End()

	err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// End closes the root span, recording err when non-nil.
func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func validatePlan(plan Plan) error {
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		stepID := strings.TrimSpace(step.ID)
		if stepID == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, exists := seen[stepID]; exists {
			return fmt.Errorf("duplicate step id %q", stepID)
		}
		seen[stepID] = struct{}{}
	}
	return nil
}
