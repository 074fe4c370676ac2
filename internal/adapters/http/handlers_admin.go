package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
)

func (h *Handler) logAdmin(r *http.Request, operation string, attrs ...any) {
	subject := ""
	if claims, ok := operatorFromContext(r.Context()); ok {
		subject = claims.Subject
	}
	fields := append([]any{
		"operation", operation,
		"outcome", "success",
		"operator", subject,
		"request_id", requestIDFromContext(r.Context()),
	}, attrs...)
	httpLogger().InfoContext(r.Context(), "admin operation", fields...)
}

func (h *Handler) recordNote(w http.ResponseWriter, r *http.Request) {
	var note domain.Note
	if !decodeJSON(w, r, &note) {
		return
	}
	resp, err := h.service.RecordNote(r.Context(), note)
	if err != nil {
		h.fail(w, r, "record_note", err)
		return
	}
	h.logAdmin(r, "record_note", "note_hash", resp.Hash)
	writeSuccess(w, http.StatusCreated, resp)
}

type createBatchRequest struct {
	Type domain.BatchType `json:"type"`
}

func (h *Handler) adminCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = domain.BatchTypeMicronote
	}
	batch, err := h.service.CreateBatch(r.Context(), req.Type)
	if err != nil {
		h.fail(w, r, "admin_create_batch", err)
		return
	}
	h.logAdmin(r, "admin_create_batch", "batch_slug", batch.Slug)
	resp, err := h.service.GetBatch(r.Context(), batch.Slug)
	if err != nil {
		h.fail(w, r, "admin_create_batch", err)
		return
	}
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) adminCloseBatch(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	resp, err := h.service.CloseBatch(r.Context(), slug)
	if err != nil {
		h.fail(w, r, "admin_close_batch", err)
		return
	}
	h.logAdmin(r, "admin_close_batch", "batch_slug", slug, "payout_records", len(resp.Payouts))
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) adminSettleBatch(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	resp, err := h.service.SettleBatch(r.Context(), slug)
	if err != nil {
		h.fail(w, r, "admin_settle_batch", err)
		return
	}
	h.logAdmin(r, "admin_settle_batch", "batch_slug", slug)
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) adminBatchSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.BatchSummary(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "admin_batch_summary", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) adminGiftCardFunding(w http.ResponseWriter, r *http.Request) {
	var req application.AlternateFundingInput
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.CreateGiftCardFunding(r.Context(), req)
	if err != nil {
		h.fail(w, r, "admin_gift_card_funding", err)
		return
	}
	h.logAdmin(r, "admin_gift_card_funding", "funds_id", resp.ID)
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) adminCreditFunding(w http.ResponseWriter, r *http.Request) {
	var req application.AlternateFundingInput
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.CreateCreditFunding(r.Context(), req)
	if err != nil {
		h.fail(w, r, "admin_credit_funding", err)
		return
	}
	h.logAdmin(r, "admin_credit_funding", "funds_id", resp.ID)
	writeSuccess(w, http.StatusCreated, resp)
}
