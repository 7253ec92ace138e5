package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/datamarket/escrow-agent/internal/settlement"
)

// Health reports whether the service and its storage are reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.MasterDB.StatusCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// AuthToken serves a fresh partner token to the consent UI.
func (h *Handlers) AuthToken(w http.ResponseWriter, r *http.Request) {
	if h.Signer == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "no signing key configured",
		})
		return
	}

	token, err := h.Signer.Token()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"authToken": token})
}

// Settle is the callback invoked after the user consents and the identity
// provider returns a proof.
func (h *Handlers) Settle(w http.ResponseWriter, r *http.Request) {
	var req settlement.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "bad json",
		})
		return
	}

	outcome, err := h.Orchestrator.Settle(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settled":   true,
		"outcome":   outcome.Disposition,
		"reference": outcome.Reference,
	})
}
