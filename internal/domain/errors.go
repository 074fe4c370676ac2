package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrConflict          = errors.New("conflict")
	ErrFundsNeeded       = errors.New("funds needed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	// ErrUnauthorized is raised by transport adapters before a request reaches the ledger.
	ErrUnauthorized = errors.New("unauthorized")
)

// LedgerError carries audit context for a taxonomy failure. It unwraps to one of the
// sentinel errors above so callers can branch with errors.Is.
type LedgerError struct {
	Kind    error
	Reason  string
	Message string
	Field   string

	Expected any
	Actual   any

	MinimumMicrogonsRequired int64
	MicrogonsRemaining       int64
}

func (e *LedgerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Expected != nil || e.Actual != nil {
		msg = fmt.Sprintf("%s: expected %v, actual %v", msg, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *LedgerError) Unwrap() error { return e.Kind }

// Code is the stable, programmatic identifier of the error kind.
func (e *LedgerError) Code() string { return ErrorCode(e) }

func (e *LedgerError) WithValues(expected, actual any) *LedgerError {
	e.Expected = expected
	e.Actual = actual
	return e
}

func InvalidParameter(reason, field, message string) *LedgerError {
	return &LedgerError{Kind: ErrInvalidParameter, Reason: reason, Field: field, Message: message}
}

func Conflict(reason, message string) *LedgerError {
	return &LedgerError{Kind: ErrConflict, Reason: reason, Message: message}
}

func NotFound(reason, message string) *LedgerError {
	return &LedgerError{Kind: ErrNotFound, Reason: reason, Message: message}
}

func InsufficientFunds(reason, message string) *LedgerError {
	return &LedgerError{Kind: ErrInsufficientFunds, Reason: reason, Message: message}
}

func FundsNeeded(minimumMicrogons, remainingMicrogons int64) *LedgerError {
	return &LedgerError{
		Kind:                     ErrFundsNeeded,
		Reason:                   "funds_needed",
		Message:                  "funding source cannot cover the requested microgons",
		MinimumMicrogonsRequired: minimumMicrogons,
		MicrogonsRemaining:       remainingMicrogons,
	}
}

func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidParameter):
		return "ERR_INVALID_PARAMETER"
	case errors.Is(err, ErrConflict):
		return "ERR_CONFLICT"
	case errors.Is(err, ErrFundsNeeded):
		return "ERR_FUNDS_NEEDED"
	case errors.Is(err, ErrInsufficientFunds):
		return "ERR_INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrNotFound):
		return "ERR_NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "ERR_UNAUTHORIZED"
	default:
		return "ERR_INTERNAL"
	}
}
