package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/ports"
)

type Handler struct {
	service   *application.Service
	verifier  ports.SignatureVerifier
	operators ports.OperatorTokenVerifier
}

// NewHandler wires the request surface. A nil operators verifier leaves the
// admin routes unmounted.
func NewHandler(service *application.Service, verifier ports.SignatureVerifier, operators ports.OperatorTokenVerifier) *Handler {
	return &Handler{service: service, verifier: verifier, operators: operators}
}

func NewRouter(handler *Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ready") })
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/batches/active", handler.getActiveBatches)

		r.Group(func(r chi.Router) {
			r.Use(signatureMiddleware(handler.verifier))
			r.Route("/batches/{slug}", func(r chi.Router) {
				r.Get("/", handler.getBatch)
				r.Post("/fund", handler.fundBatch)
				r.Get("/funds/find", handler.findFund)
				r.Get("/funds/active", handler.activeFunds)
				r.Post("/funds/settlement", handler.fundSettlement)
				r.Post("/micronotes", handler.createMicronote)
				r.Post("/micronotes/{micronoteId}/lock", handler.lockMicronote)
				r.Post("/micronotes/{micronoteId}/holds", handler.holdMicronote)
				r.Post("/micronotes/{micronoteId}/holds/{holdId}/settle", handler.settleHold)
				r.Post("/micronotes/{micronoteId}/claim", handler.claimMicronote)
			})
			r.Get("/ledger/notes/{hash}", handler.getNote)
			r.Get("/ledger/balances/{address}", handler.getBalance)
		})

		if handler.operators == nil {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(operatorMiddleware(handler.operators))
			r.Post("/ledger/notes", handler.recordNote)
			r.Route("/admin", func(r chi.Router) {
				r.Post("/batches", handler.adminCreateBatch)
				r.Post("/batches/{slug}/close", handler.adminCloseBatch)
				r.Post("/batches/{slug}/settle", handler.adminSettleBatch)
				r.Get("/batches/{slug}/summary", handler.adminBatchSummary)
				r.Post("/funding/gift-cards", handler.adminGiftCardFunding)
				r.Post("/funding/credits", handler.adminCreditFunding)
			})
		})
	})
	return r
}
