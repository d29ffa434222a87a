// Package otel bridges the observe.Sink to OpenTelemetry tracing.
//
// It converts gateway observe.Event objects into OTel spans so that hires,
// polls, and result fetches are visible in any OpenTelemetry-compatible
// backend (Jaeger, Zipkin, Grafana, etc.).
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/masumi-network/masumi-gateway/observe"
)

const instrumentationName = "github.com/masumi-network/masumi-gateway"

// Sink implements observe.Sink by emitting OpenTelemetry spans.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates an OTel sink using the given TracerProvider.
// If tp is nil, it uses a noop tracer provider.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{
		tracer: tp.Tracer(instrumentationName),
	}
}

// Emit converts an observe.Event into an OTel span.
func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	spanName := spanNameFor(event)
	ctx := context.Background()
	startTime := event.Timestamp

	_, span := s.tracer.Start(ctx, spanName, trace.WithTimestamp(startTime))

	attrs := []attribute.KeyValue{
		attribute.String("gateway.event.kind", string(event.Kind)),
	}
	if event.AgentID != "" {
		attrs = append(attrs, attribute.String("gateway.agent.id", event.AgentID))
	}
	if event.JobID != "" {
		attrs = append(attrs, attribute.String("gateway.job.id", event.JobID))
	}
	if event.PaymentID != "" {
		attrs = append(attrs, attribute.String("gateway.payment.id", event.PaymentID))
	}
	if event.Network != "" {
		attrs = append(attrs, attribute.String("gateway.network", event.Network))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("gateway.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("gateway.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("gateway.message", truncate(event.Message, 1024)))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("gateway.duration_ms", event.DurationMs))
	}

	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("gateway.attr."+k, fmt.Sprintf("%v", v)))
	}

	span.SetAttributes(attrs...)

	// A partial hire is an error span: state is split across the services.
	if event.Status == observe.StatusFailed || event.Status == observe.StatusPartial {
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	} else if event.Status == observe.StatusCompleted {
		span.SetStatus(codes.Ok, "")
	}

	endTime := startTime
	if event.DurationMs > 0 {
		endTime = startTime.Add(time.Duration(event.DurationMs) * time.Millisecond)
	}
	span.End(trace.WithTimestamp(endTime))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindHire:
		return "gateway.hire"
	case observe.KindPoll:
		return "gateway.poll"
	case observe.KindResult:
		return "gateway.result"
	case observe.KindRegistry:
		if event.Name != "" {
			return "gateway.registry." + event.Name
		}
		return "gateway.registry"
	case observe.KindPayment:
		if event.Name != "" {
			return "gateway.payment." + event.Name
		}
		return "gateway.payment"
	case observe.KindTool:
		if event.Name != "" {
			return "gateway.tool." + event.Name
		}
		return "gateway.tool.call"
	default:
		if event.Name != "" {
			return "gateway." + event.Name
		}
		return "gateway.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
