// Package observability provides Prometheus metrics and OpenTelemetry
// tracing helpers for the omnichat core. Exporter setup is left to the
// embedding application; spans go to whatever global tracer provider the
// host installed, and are no-ops otherwise.
package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "omnichat"

var (
	tracer   trace.Tracer
	tracerMu sync.RWMutex
)

// StartSpan starts a span using the global tracer provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracerMu.RLock()
	tr := tracer
	tracerMu.RUnlock()

	if tr == nil {
		tracerMu.Lock()
		if tracer == nil {
			tracer = otel.GetTracerProvider().Tracer(serviceName)
		}
		tr = tracer
		tracerMu.Unlock()
	}

	return tr.Start(ctx, name, opts...)
}
