package settlement

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Request is one settlement attempt. It exists only for the duration of the
// orchestration call and is never stored.
type Request struct {
	EscrowID   common.Hash     `json:"escrowId"`
	Proof      json.RawMessage `json:"proof"`
	Subject    common.Address  `json:"userAddress"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// Disposition is the terminal state a settlement drove the escrow to.
type Disposition string

const (
	Released Disposition = "released"
	Refunded Disposition = "refunded"
)

// Outcome reports the result of a settlement to the caller.
type Outcome struct {
	EscrowID    common.Hash `json:"escrowId"`
	Disposition Disposition `json:"outcome"`
	Reference   string      `json:"reference"`
}
