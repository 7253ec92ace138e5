package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/datamarket/escrow-agent/internal/escrow"
	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/settlement"
	"github.com/datamarket/escrow-agent/internal/treasury"
	"github.com/datamarket/escrow-agent/pkg/verifier"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Handlers holds the dependencies of the web layer. The web layer stays
// thin; every rule lives in the ledger and the orchestrator.
type Handlers struct {
	MasterDB     *db.DB
	Orchestrator *settlement.Orchestrator
	Signer       *verifier.TokenSigner
}

// API constructs the http router.
func API(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.Health)
	r.Get("/auth-token", h.AuthToken)

	r.Post("/proof-callback", h.Settle)

	r.Route("/escrows", func(api chi.Router) {
		api.Post("/", h.Deposit)
		api.Get("/{escrow_id}", h.Escrow)
		api.Get("/{escrow_id}/events", h.Events)
	})

	r.Route("/admin", func(api chi.Router) {
		api.Put("/authority", h.SetAuthority)
		api.Put("/fees", h.SetFeeConfig)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch errors.Cause(err) {
	case settlement.ErrMalformedRequest, escrow.ErrZeroAmount, escrow.ErrInvalidFeeBps,
		treasury.ErrInvalidAmount:
		status = http.StatusBadRequest
	case escrow.ErrUnauthorized:
		status = http.StatusForbidden
	case escrow.ErrNotFound:
		status = http.StatusNotFound
	case escrow.ErrDuplicateID, escrow.ErrAlreadySettled:
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}
