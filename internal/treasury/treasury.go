package treasury

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

var (
	// ErrInsufficientFunds occurs when the source account doesn't hold enough
	// value for the operation.
	ErrInsufficientFunds = errors.New("Account funds insufficient")

	// ErrAccountFrozen occurs when an account cannot accept or disburse funds.
	ErrAccountFrozen = errors.New("Account is frozen")

	// ErrInvalidAmount occurs when an amount is nil or negative.
	ErrInvalidAmount = errors.New("Amount is not valid")
)

// Account mutations are serialized. Escrow settlement is serialized per
// escrow id one level up, but payee and fee accounts are shared across
// escrows.
var moveLock sync.Mutex

// escrowAccountPrefix domain separates derived custody accounts from caller
// supplied addresses.
var escrowAccountPrefix = []byte("escrow/account")

// EscrowAccount derives the holding account address for an escrow id. Funds
// deposited against an id are custodied under this address until settlement.
// The address is a hash of the id, so a caller cannot choose an id that
// collides with a payee or fee account.
func EscrowAccount(id common.Hash) common.Address {
	return common.BytesToAddress(crypto.Keccak256(escrowAccountPrefix, id[:])[12:])
}

// GetAccount returns the account for an address, or a new empty account when
// none has been stored yet.
func GetAccount(ctx context.Context, dbConn *db.DB, address common.Address,
	now time.Time) (*state.Account, error) {

	result, err := Fetch(ctx, dbConn, address)
	if err == nil {
		return result, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	result = &state.Account{
		Address:   address,
		Balance:   big.NewInt(0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return result, nil
}

// Balance returns the current balance of an address. Unknown addresses have
// a zero balance.
func Balance(ctx context.Context, dbConn *db.DB, address common.Address) (*big.Int, error) {
	a, err := Fetch(ctx, dbConn, address)
	if err != nil {
		if err == ErrNotFound {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return a.Balance, nil
}

// CanAccept reports whether the destination is able to receive funds.
func CanAccept(ctx context.Context, dbConn *db.DB, address common.Address) (bool, error) {
	a, err := Fetch(ctx, dbConn, address)
	if err != nil {
		if err == ErrNotFound {
			return true, nil
		}
		return false, err
	}
	return !a.Frozen, nil
}

// Deposit credits externally received value to an address.
func Deposit(ctx context.Context, dbConn *db.DB, address common.Address,
	amount *big.Int, now time.Time) error {

	ctx, span := trace.StartSpan(ctx, "internal.treasury.Deposit")
	defer span.End()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	moveLock.Lock()
	defer moveLock.Unlock()

	a, err := GetAccount(ctx, dbConn, address, now)
	if err != nil {
		return errors.Wrap(err, "get account")
	}
	if a.Frozen {
		return ErrAccountFrozen
	}

	a.Balance = new(big.Int).Add(a.Balance, amount)
	a.UpdatedAt = now

	return Save(ctx, dbConn, a)
}

// Move transfers value between two accounts. It fails without mutating
// either account when the source lacks funds or either account is frozen.
func Move(ctx context.Context, dbConn *db.DB, from, to common.Address,
	amount *big.Int, now time.Time) error {

	ctx, span := trace.StartSpan(ctx, "internal.treasury.Move")
	defer span.End()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	moveLock.Lock()
	defer moveLock.Unlock()

	src, err := GetAccount(ctx, dbConn, from, now)
	if err != nil {
		return errors.Wrap(err, "get source")
	}
	if src.Frozen {
		return errors.Wrap(ErrAccountFrozen, from.Hex())
	}
	if src.Balance.Cmp(amount) < 0 {
		return errors.Wrap(ErrInsufficientFunds, from.Hex())
	}

	// A self transfer is a no-op once the source checks pass. Fetching the
	// account twice would let the credit clobber the debit.
	if from == to {
		return nil
	}

	dst, err := GetAccount(ctx, dbConn, to, now)
	if err != nil {
		return errors.Wrap(err, "get destination")
	}
	if dst.Frozen {
		return errors.Wrap(ErrAccountFrozen, to.Hex())
	}

	src.Balance = new(big.Int).Sub(src.Balance, amount)
	src.UpdatedAt = now
	dst.Balance = new(big.Int).Add(dst.Balance, amount)
	dst.UpdatedAt = now

	if err := Save(ctx, dbConn, src); err != nil {
		return errors.Wrap(err, "save source")
	}
	return Save(ctx, dbConn, dst)
}

// Payment is one leg of a disbursement.
type Payment struct {
	To     common.Address
	Amount *big.Int
}

// Disburse transfers value from one account to several destinations as a
// single unit. Every credit applies or none does. Destinations may repeat
// and may equal the source; each address is fetched once and mutated in
// place so shared accounts accumulate correctly.
func Disburse(ctx context.Context, dbConn *db.DB, from common.Address,
	payments []Payment, now time.Time) error {

	ctx, span := trace.StartSpan(ctx, "internal.treasury.Disburse")
	defer span.End()

	total := big.NewInt(0)
	for _, p := range payments {
		if p.Amount == nil || p.Amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		total.Add(total, p.Amount)
	}

	moveLock.Lock()
	defer moveLock.Unlock()

	accounts := make(map[common.Address]*state.Account)

	src, err := GetAccount(ctx, dbConn, from, now)
	if err != nil {
		return errors.Wrap(err, "get source")
	}
	accounts[from] = src

	if src.Frozen {
		return errors.Wrap(ErrAccountFrozen, from.Hex())
	}
	if src.Balance.Cmp(total) < 0 {
		return errors.Wrap(ErrInsufficientFunds, from.Hex())
	}

	// Every destination must be able to accept funds before anything moves.
	for _, p := range payments {
		a, exists := accounts[p.To]
		if !exists {
			a, err = GetAccount(ctx, dbConn, p.To, now)
			if err != nil {
				return errors.Wrap(err, "get destination")
			}
			accounts[p.To] = a
		}
		if a.Frozen {
			return errors.Wrap(ErrAccountFrozen, p.To.Hex())
		}
	}

	src.Balance = new(big.Int).Sub(src.Balance, total)
	src.UpdatedAt = now
	for _, p := range payments {
		a := accounts[p.To]
		a.Balance = new(big.Int).Add(a.Balance, p.Amount)
		a.UpdatedAt = now
	}

	for _, a := range accounts {
		if err := Save(ctx, dbConn, a); err != nil {
			return errors.Wrap(err, "save account")
		}
	}

	return nil
}

// Freeze sets the frozen flag on an address, creating the account when it
// doesn't exist yet.
func Freeze(ctx context.Context, dbConn *db.DB, address common.Address,
	frozen bool, now time.Time) error {

	ctx, span := trace.StartSpan(ctx, "internal.treasury.Freeze")
	defer span.End()

	moveLock.Lock()
	defer moveLock.Unlock()

	a, err := GetAccount(ctx, dbConn, address, now)
	if err != nil {
		return errors.Wrap(err, "get account")
	}

	a.Frozen = frozen
	a.UpdatedAt = now

	return Save(ctx, dbConn, a)
}
