package handlers

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/datamarket/escrow-agent/internal/escrow"
	"github.com/datamarket/escrow-agent/pkg/events"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// Deposit creates a pending escrow record for the attached value.
func (h *Handlers) Deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EscrowID string `json:"escrowId"`
		Payer    string `json:"payer"`
		Payee    string `json:"payee"`
		Amount   string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad json"})
		return
	}

	id, ok := parseHash(req.EscrowID)
	if !ok || !common.IsHexAddress(req.Payer) || !common.IsHexAddress(req.Payee) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing fields"})
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad amount"})
		return
	}

	e, err := escrow.Deposit(r.Context(), h.MasterDB, &escrow.NewEscrow{
		ID:     id,
		Payer:  common.HexToAddress(req.Payer),
		Payee:  common.HexToAddress(req.Payee),
		Amount: amount,
	}, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

// Escrow returns the current state of a record, terminal records included.
func (h *Handlers) Escrow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(chi.URLParam(r, "escrow_id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad escrow id"})
		return
	}

	e, err := escrow.Retrieve(r.Context(), h.MasterDB, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// Events returns the audit trail for a record, oldest first.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(chi.URLParam(r, "escrow_id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad escrow id"})
		return
	}

	result, err := events.List(r.Context(), h.MasterDB, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SetAuthority rotates the settlement authority. Owner only.
func (h *Handlers) SetAuthority(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing caller address"})
		return
	}

	var req struct {
		Authority string `json:"authority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.Authority) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad authority"})
		return
	}

	if err := escrow.SetAuthority(r.Context(), h.MasterDB, caller,
		common.HexToAddress(req.Authority), time.Now()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": true})
}

// SetFeeConfig updates the fee recipient and basis points. Owner only.
func (h *Handlers) SetFeeConfig(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing caller address"})
		return
	}

	var req struct {
		FeeRecipient string `json:"feeRecipient"`
		FeeBps       uint32 `json:"feeBps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.FeeRecipient) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad fee config"})
		return
	}

	if err := escrow.SetFeeConfig(r.Context(), h.MasterDB, caller,
		common.HexToAddress(req.FeeRecipient), req.FeeBps, time.Now()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": true})
}

// callerAddress reads the authenticated caller identity set by the edge
// proxy.
func callerAddress(r *http.Request) (common.Address, bool) {
	s := r.Header.Get("X-Caller-Address")
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseHash(s string) (common.Hash, bool) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}
