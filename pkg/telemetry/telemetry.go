// ABOUTME: Core telemetry abstraction over OpenTelemetry for blockaudit scan instrumentation
// ABOUTME: Provides metric recording, tracing, and lifecycle management with a no-op default

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry is the abstraction blockaudit components record against without
// depending directly on OpenTelemetry.
type Telemetry interface {
	// RecordHistogram records a histogram value with optional attributes.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)

	// RecordCounter records a counter increment with optional attributes.
	RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue)

	// StartSpan creates a new tracing span with the given name and attributes.
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// Shutdown gracefully shuts down all telemetry providers and exports remaining data.
	Shutdown(ctx context.Context) error
}

// NoopTelemetry provides a no-operation implementation of Telemetry for
// disabled scenarios and tests.
type NoopTelemetry struct{}

// NewNoop creates a new no-operation telemetry instance.
func NewNoop() Telemetry {
	return &NoopTelemetry{}
}

// RecordHistogram is a no-op.
func (n *NoopTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
}

// RecordCounter is a no-op.
func (n *NoopTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
}

// StartSpan returns the original context and a no-op span.
func (n *NoopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (n *NoopTelemetry) Shutdown(ctx context.Context) error {
	return nil
}

// RecordDuration is a helper to record operation duration in a histogram.
func RecordDuration(ctx context.Context, tel Telemetry, name string, start time.Time, attrs ...attribute.KeyValue) {
	duration := time.Since(start).Seconds()
	tel.RecordHistogram(ctx, name, duration, attrs...)
}

// Common attribute keys for consistent naming across components
const (
	AttrOperation = "operation"
	AttrComponent = "component"
	AttrChannel   = "channel"
	AttrBlockFile = "block.file"

	AttrStatus    = "status"
	AttrErrorType = "error.type"
)

// Common attribute values
const (
	// Operation names
	OpCheck     = "check"
	OpRepair    = "repair"
	OpGenerate  = "generate"
	OpSizeCheck = "size_check"

	// Status values
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusMismatch = "mismatch"

	// Component names
	ComponentBlockFile = "blockfile"
	ComponentSizeInfo  = "sizeinfo"
	ComponentScan      = "scan"
)
