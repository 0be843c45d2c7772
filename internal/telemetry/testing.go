package telemetry

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory so dispatcher and
// HTTP tests can inspect what a request emitted.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *MetricRecorder
}

// NewTestTelemetry returns an enabled Telemetry backed by in-memory
// recorders.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	metrics := &MetricRecorder{reader: sdkmetric.NewManualReader()}

	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(spans)),
			meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(metrics.reader)),
		},
		SpanRecorder: spans,
		MetricReader: metrics,
	}
}

// Spans returns every ended span in end order.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// DispatchSpans returns the ended spans of dispatched triggers.
func (t *TestTelemetry) DispatchSpans() []trace.ReadOnlySpan {
	var out []trace.ReadOnlySpan
	for _, span := range t.Spans() {
		if strings.HasPrefix(span.Name(), DispatchSpanPrefix) {
			out = append(out, span)
		}
	}
	return out
}

// DispatchSpan returns the span of the request with the given ID, or nil.
func (t *TestTelemetry) DispatchSpan(requestID string) trace.ReadOnlySpan {
	for _, span := range t.DispatchSpans() {
		if v, ok := spanAttr(span, "request.id"); ok && v == requestID {
			return span
		}
	}
	return nil
}

// AssertDispatched verifies that the request ran under trigger for the
// given persona and ended without an error status.
func (t *TestTelemetry) AssertDispatched(tb testing.TB, requestID, trigger, personaID string) {
	tb.Helper()
	span := t.requireDispatchSpan(tb, requestID)
	if want := DispatchSpanName(trigger); span.Name() != want {
		tb.Errorf("request %s: span %q, want %q", requestID, span.Name(), want)
	}
	if got, _ := spanAttr(span, "persona.id"); got != personaID {
		tb.Errorf("request %s: persona.id %v, want %q", requestID, got, personaID)
	}
	if span.Status().Code == codes.Error {
		tb.Errorf("request %s: unexpected error status %q", requestID, span.Status().Description)
	}
}

// AssertDispatchFailed verifies that the request's span carries an error
// status and the given error code.
func (t *TestTelemetry) AssertDispatchFailed(tb testing.TB, requestID, code string) {
	tb.Helper()
	span := t.requireDispatchSpan(tb, requestID)
	if span.Status().Code != codes.Error {
		tb.Errorf("request %s: status %v, want error", requestID, span.Status().Code)
	}
	if got, _ := spanAttr(span, "error.code"); got != code {
		tb.Errorf("request %s: error.code %v, want %q", requestID, got, code)
	}
}

// AssertSpanAttribute verifies that the span called spanName has key set
// to expected.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found, got %v", spanName, t.spanNames())
	}
	got, ok := spanAttr(span, key)
	if !ok {
		tb.Errorf("span %q missing attribute %q", spanName, key)
		return
	}
	if got != expected {
		tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
	}
}

func (t *TestTelemetry) requireDispatchSpan(tb testing.TB, requestID string) trace.ReadOnlySpan {
	tb.Helper()
	span := t.DispatchSpan(requestID)
	if span == nil {
		tb.Fatalf("no dispatch span for request %s, got %v", requestID, t.spanNames())
	}
	return span
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	return names
}

func spanAttr(span trace.ReadOnlySpan, key string) (interface{}, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return attrValue(kv.Value), true
		}
	}
	return nil, false
}

func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// MetricRecorder collects metrics on demand through a manual reader.
type MetricRecorder struct {
	reader *sdkmetric.ManualReader

	mu      sync.Mutex
	metrics []metricdata.ResourceMetrics
}

// ForceFlush collects the current metrics and keeps them.
func (r *MetricRecorder) ForceFlush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return err
	}
	r.mu.Lock()
	r.metrics = append(r.metrics, rm)
	r.mu.Unlock()
	return nil
}

// Shutdown shuts down the reader.
func (r *MetricRecorder) Shutdown(ctx context.Context) error {
	return r.reader.Shutdown(ctx)
}

// Metrics returns every collection made so far.
func (r *MetricRecorder) Metrics() []metricdata.ResourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Sum returns the total of the int64 counter called name in the latest
// collection.
func (r *MetricRecorder) Sum(name string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.metrics) == 0 {
		return 0, false
	}
	for _, sm := range r.metrics[len(r.metrics)-1].ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return 0, false
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}
