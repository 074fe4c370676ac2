package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ulixee/payments-sub000/internal/application"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "ERR_INVALID_PARAMETER", "invalid json body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(r, operation, status, code, msg, err)
	writeErrorDetail(w, status, code, msg, errorDetail(err))
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (application.Caller, bool) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "signed request required")
		return application.Caller{}, false
	}
	return caller, true
}

// queryAddressMatches rejects an explicit address query that names someone
// other than the signing caller.
func queryAddressMatches(w http.ResponseWriter, r *http.Request, caller application.Caller) bool {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address != "" && address != caller.Address {
		writeError(w, http.StatusBadRequest, "ERR_INVALID_PARAMETER", "address does not belong to the signing identity")
		return false
	}
	return true
}

func queryInt64(r *http.Request, key string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
