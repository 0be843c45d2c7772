package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from ctx: OTel trace and span IDs,
// the request ID and the persona being served.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := PersonaIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("persona.id", id))
	}
	return fields
}

type requestCtxKey struct{}
type personaCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ValidateID checks that id is safe to use as a correlation value.
func ValidateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters", name)
	}
	return nil
}

// RequestIDFromContext extracts the request ID from ctx.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds a request ID to ctx. Invalid IDs are dropped.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ValidateID(requestID, "request ID") != nil {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// PersonaIDFromContext extracts the persona ID from ctx.
func PersonaIDFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(personaCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithPersonaID adds a persona ID to ctx. Invalid IDs are dropped.
func WithPersonaID(ctx context.Context, personaID string) context.Context {
	if ValidateID(personaID, "persona ID") != nil {
		return ctx
	}
	return context.WithValue(ctx, personaCtxKey{}, personaID)
}
