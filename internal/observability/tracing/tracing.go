package tracing

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ExtractContext pulls remote trace context from carrier headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// StartSpan starts an internal span under the cemtrack tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("cemtrack").Start(ctx, name, trace.WithAttributes(SafeAttributes(attrs...)...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		if safe := SafeError(err); safe != nil {
			span.RecordError(safe)
		}
		span.SetStatus(codes.Error, "operation failed")
	}
	span.End()
}

var blockedKeys = map[attribute.Key]struct{}{
	"photo_base64": {},
	"payload":      {},
}

// SafeAttributes drops attributes that may carry request bodies.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its ledger error code when it has one, so driver
// messages and payload fragments stay out of exported spans.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrLockTimeout,
		domain.ErrStoreUnavailable,
		domain.ErrSchemaMissing,
		domain.ErrBagNotFound,
		domain.ErrDuplicateUsage,
		domain.ErrInvalidPlant,
		domain.ErrInvalidBatch,
		domain.ErrInvalidCount,
		domain.ErrInvalidBagID,
		domain.ErrInvalidWorker,
		context.DeadlineExceeded,
		context.Canceled,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	msg := err.Error()
	if idx := strings.IndexByte(msg, ':'); idx > 0 {
		msg = msg[:idx]
	}
	return errors.New(msg)
}
