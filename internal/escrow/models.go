package escrow

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps is the whole of the amount, in basis points.
const MaxFeeBps = 10000

// NewEscrow defines what we require when creating an escrow record. The
// payer chooses the ID and it must not collide with an existing record.
// Amount is the value attached to the deposit call.
type NewEscrow struct {
	ID     common.Hash    `json:"id"`
	Payer  common.Address `json:"payer"`
	Payee  common.Address `json:"payee"`
	Amount *big.Int       `json:"amount"`
}

// ComputeFee returns the protocol fee for an amount at the given basis
// points, using floor division, and the net remainder.
func ComputeFee(amount *big.Int, feeBps uint32) (fee, net *big.Int) {
	fee = new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(MaxFeeBps))
	net = new(big.Int).Sub(amount, fee)
	return fee, net
}
