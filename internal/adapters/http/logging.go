package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ulixee/payments-sub000/internal/domain"
)

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"module", "http",
		"layer", "adapter",
	)
}

// routeFields names the batch, note and hold a request addressed plus the
// party behind it, so ledger failures can be traced to a micronote.
func routeFields(r *http.Request) []any {
	fields := []any{"request_id", requestIDFromContext(r.Context())}
	for _, param := range []struct{ key, field string }{
		{"slug", "batch_slug"},
		{"micronoteId", "micronote_id"},
		{"holdId", "hold_id"},
	} {
		if value := chi.URLParam(r, param.key); value != "" {
			fields = append(fields, param.field, value)
		}
	}
	if caller, ok := callerFromContext(r.Context()); ok {
		fields = append(fields, "caller_address", caller.Address)
	}
	if claims, ok := operatorFromContext(r.Context()); ok {
		fields = append(fields, "operator", claims.Subject)
	}
	return fields
}

func logHTTPOperationError(r *http.Request, operation string, statusCode int, code, message string, err error) {
	fields := append([]any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
	}, routeFields(r)...)
	var ledgerErr *domain.LedgerError
	if errors.As(err, &ledgerErr) {
		fields = append(fields, "reason", ledgerErr.Reason)
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	ctx := r.Context()
	if statusCode >= 500 {
		httpLogger().ErrorContext(ctx, "ledger request failed", fields...)
		return
	}
	httpLogger().WarnContext(ctx, "ledger request failed", fields...)
}
