package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
)

func (h *Handler) getActiveBatches(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ActiveBatches(r.Context())
	if err != nil {
		h.fail(w, r, "get_active_batches", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "get_batch", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

type fundRequest struct {
	Note domain.Note `json:"note"`
}

func (h *Handler) fundBatch(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req fundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Fund(r.Context(), caller, chi.URLParam(r, "slug"), req.Note)
	if err != nil {
		h.fail(w, r, "fund_batch", err)
		return
	}
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) findFund(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !queryAddressMatches(w, r, caller) {
		return
	}
	microgons, ok := queryInt64(r, "microgons")
	if !ok {
		writeError(w, http.StatusBadRequest, "ERR_INVALID_PARAMETER", "microgons query param is required")
		return
	}
	resp, err := h.service.FindFund(r.Context(), caller, chi.URLParam(r, "slug"), microgons)
	if err != nil {
		h.fail(w, r, "find_fund", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) activeFunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !queryAddressMatches(w, r, caller) {
		return
	}
	resp, err := h.service.ActiveFunds(r.Context(), caller, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "active_funds", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

type fundSettlementRequest struct {
	FundsIDs []int64 `json:"funds_ids"`
}

func (h *Handler) fundSettlement(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req fundSettlementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.GetFundSettlement(r.Context(), caller, chi.URLParam(r, "slug"), req.FundsIDs)
	if err != nil {
		h.fail(w, r, "get_fund_settlement", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) createMicronote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req application.CreateMicronoteInput
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.CreateMicronote(r.Context(), caller, chi.URLParam(r, "slug"), req)
	if err != nil {
		h.fail(w, r, "create_micronote", err)
		return
	}
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) lockMicronote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Lock(r.Context(), caller, chi.URLParam(r, "slug"), chi.URLParam(r, "micronoteId"))
	if err != nil {
		h.fail(w, r, "lock_micronote", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) holdMicronote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req application.HoldInput
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Hold(r.Context(), caller, chi.URLParam(r, "slug"), chi.URLParam(r, "micronoteId"), req)
	if err != nil {
		h.fail(w, r, "hold_micronote", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) settleHold(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req application.SettleInput
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Settle(r.Context(), caller, chi.URLParam(r, "slug"), chi.URLParam(r, "micronoteId"), chi.URLParam(r, "holdId"), req)
	if err != nil {
		h.fail(w, r, "settle_hold", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) claimMicronote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req application.ClaimInput
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Claim(r.Context(), caller, chi.URLParam(r, "slug"), chi.URLParam(r, "micronoteId"), req)
	if err != nil {
		h.fail(w, r, "claim_micronote", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetNote(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.fail(w, r, "get_note", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	centagons, err := h.service.Balance(r.Context(), address)
	if err != nil {
		h.fail(w, r, "get_balance", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"address": address, "centagons": centagons})
}
