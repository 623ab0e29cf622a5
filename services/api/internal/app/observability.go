package app

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cimillas/bookloan/services/api/internal/app"

const (
	spanBorrowOpen     = "borrow.open"
	spanBorrowClose    = "borrow.close"
	spanPaymentOpen    = "payment.open"
	spanPaymentConfirm = "payment.confirm"
	spanOverdueSweep   = "overdue.sweep"

	attrBorrowID    = "borrow.id"
	attrTitleID     = "title.id"
	attrBorrowerID  = "borrower.id"
	attrPaymentKind = "payment.kind"
	attrSessionID   = "payment.session_id"
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Notifier delivers a human-readable message to operators. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }
