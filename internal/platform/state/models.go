package state

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EscrowStatus is the lifecycle state of an escrow record.
type EscrowStatus string

const (
	// EscrowPending is the initial state, entered by deposit.
	EscrowPending EscrowStatus = "pending"

	// EscrowReleased is terminal. Funds were disbursed to the payee minus fee.
	EscrowReleased EscrowStatus = "released"

	// EscrowRefunded is terminal. The full amount was returned to the payer.
	EscrowRefunded EscrowStatus = "refunded"
)

// Terminal returns true when no further transition is permitted.
func (s EscrowStatus) Terminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

// Escrow is one custody record. The ID is chosen by the payer at deposit
// time and doubles as the nonce binding a proof to this record. Records are
// never deleted; terminal records remain queryable.
type Escrow struct {
	ID     common.Hash    `json:"id"`
	Payer  common.Address `json:"payer"`
	Payee  common.Address `json:"payee"`
	Amount *big.Int       `json:"amount"`
	Status EscrowStatus   `json:"status"`

	// Fee and SettlementRef are set when the record goes terminal.
	Fee           *big.Int `json:"fee,omitempty"`
	SettlementRef string   `json:"settlement_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SettledAt time.Time `json:"settled_at,omitempty"`
}

// Account is a treasury balance for one address.
type Account struct {
	Address common.Address `json:"address"`
	Balance *big.Int       `json:"balance"`

	// Frozen accounts cannot accept or disburse funds.
	Frozen bool `json:"frozen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerConfig holds the ledger scoped settings. Owner is fixed at
// construction. Authority and fee settings are owner mutable.
type LedgerConfig struct {
	Owner        common.Address `json:"owner"`
	Authority    common.Address `json:"authority"`
	FeeRecipient common.Address `json:"fee_recipient"`
	FeeBps       uint32         `json:"fee_bps"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
