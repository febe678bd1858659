package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StoreSpan 为文档存储 / 本地回退存储操作创建 span
func StoreSpan(ctx context.Context, system, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	)
	return Tracer().Start(ctx, system+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan 记录错误并结束 span；notFound 为 true 时不视为错误
func EndSpan(span trace.Span, err error, notFound bool) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case notFound:
		span.SetStatus(codes.Ok, "not found")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
