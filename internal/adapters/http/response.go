package http

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details *apiErrorDetail `json:"details,omitempty"`
}

// apiErrorDetail is the audit context carried by ledger errors.
type apiErrorDetail struct {
	Reason                   string `json:"reason,omitempty"`
	Field                    string `json:"field,omitempty"`
	Expected                 any    `json:"expected,omitempty"`
	Actual                   any    `json:"actual,omitempty"`
	MinimumMicrogonsRequired int64  `json:"minimum_microgons_required,omitempty"`
	MicrogonsRemaining       int64  `json:"microgons_remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func writeErrorDetail(w http.ResponseWriter, statusCode int, code, message string, details *apiErrorDetail) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
		Details: details,
	})
}
