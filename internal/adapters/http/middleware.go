package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyCaller    ctxKey = "caller"
	ctxKeyOperator  ctxKey = "operator"
)

const maxBodyBytes = 1 << 20

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", r.URL.Path,
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "ERR_INTERNAL", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpLogger().DebugContext(r.Context(), "http request served",
			"operation", r.Method+" "+r.URL.Path,
			"outcome", "served",
			"status_code", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		)
	})
}

// signatureMiddleware admits requests whose X-Signature verifies against the
// body for the X-Identity key. The identity's address becomes the caller.
func signatureMiddleware(verifier ports.SignatureVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := strings.TrimSpace(r.Header.Get("X-Identity"))
			signature := strings.TrimSpace(r.Header.Get("X-Signature"))
			if identity == "" || signature == "" {
				writeError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "signed request required")
				return
			}
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "ERR_INVALID_PARAMETER", "request body too large")
				return
			}
			if err := verifier.Verify(identity, body, signature); err != nil {
				logHTTPOperationError(r, "verify_signature", http.StatusUnauthorized, "ERR_UNAUTHORIZED", "signature rejected", err)
				writeError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "invalid request signature")
				return
			}
			address, err := verifier.Address(identity)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "invalid identity")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			caller := application.Caller{Identity: identity, Address: address, RequestID: requestIDFromContext(r.Context())}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyCaller, caller)))
		})
	}
}

func operatorMiddleware(tokens ports.OperatorTokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "invalid or missing credentials")
				return
			}
			claims, err := tokens.ParseAndValidate(raw)
			if err != nil {
				logHTTPOperationError(r, "verify_operator", http.StatusUnauthorized, "ERR_UNAUTHORIZED", "operator token rejected", err)
				writeError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "invalid or missing credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyOperator, claims)))
		})
	}
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", domain.ErrUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", domain.ErrUnauthorized
	}
	return token, nil
}

func callerFromContext(ctx context.Context) (application.Caller, bool) {
	caller, ok := ctx.Value(ctxKeyCaller).(application.Caller)
	return caller, ok
}

func operatorFromContext(ctx context.Context) (ports.OperatorClaims, bool) {
	claims, ok := ctx.Value(ctxKeyOperator).(ports.OperatorClaims)
	return claims, ok
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func mapDomainError(err error) (int, string, string) {
	message := err.Error()
	var ledgerErr *domain.LedgerError
	if errors.As(err, &ledgerErr) && ledgerErr.Message != "" {
		message = ledgerErr.Message
	}
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return http.StatusBadRequest, "ERR_INVALID_PARAMETER", message
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "ERR_UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "ERR_NOT_FOUND", message
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "ERR_CONFLICT", message
	case errors.Is(err, domain.ErrFundsNeeded):
		return http.StatusPaymentRequired, "ERR_FUNDS_NEEDED", message
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_FUNDS", message
	default:
		return http.StatusInternalServerError, "ERR_INTERNAL", "internal server error"
	}
}

func errorDetail(err error) *apiErrorDetail {
	var ledgerErr *domain.LedgerError
	if !errors.As(err, &ledgerErr) {
		return nil
	}
	return &apiErrorDetail{
		Reason:                   ledgerErr.Reason,
		Field:                    ledgerErr.Field,
		Expected:                 ledgerErr.Expected,
		Actual:                   ledgerErr.Actual,
		MinimumMicrogonsRequired: ledgerErr.MinimumMicrogonsRequired,
		MicrogonsRemaining:       ledgerErr.MicrogonsRemaining,
	}
}
