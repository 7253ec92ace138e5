package escrow

import (
	"context"
	"sync"
	"time"

	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/node"
	"github.com/datamarket/escrow-agent/internal/platform/state"
	"github.com/datamarket/escrow-agent/internal/treasury"
	"github.com/datamarket/escrow-agent/pkg/events"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

var (
	// ErrNotFound abstracts the standard not found error.
	ErrNotFound = errors.New("Escrow not found")

	// ErrDuplicateID occurs when a deposit reuses the id of an existing
	// record. Deposits are never merged.
	ErrDuplicateID = errors.New("Escrow id already exists")

	// ErrZeroAmount occurs when a deposit carries no value.
	ErrZeroAmount = errors.New("Deposit amount must be positive")

	// ErrAlreadySettled occurs when a record is already terminal.
	ErrAlreadySettled = errors.New("Escrow already settled")

	// ErrUnauthorized occurs when the caller is not the settlement authority,
	// or not the owner for administrative operations.
	ErrUnauthorized = errors.New("Caller not authorized")

	// ErrInvalidFeeBps occurs when a fee above 100% is configured.
	ErrInvalidFeeBps = errors.New("Fee basis points out of range")
)

// Check-then-transition on a record must be one critical section, so two
// concurrent settlement attempts for the same id produce exactly one
// success. Records for different ids settle independently.
var (
	recordLocks     map[common.Hash]*sync.Mutex
	recordLocksLock sync.Mutex
)

func lockRecord(id common.Hash) *sync.Mutex {
	recordLocksLock.Lock()
	defer recordLocksLock.Unlock()

	if recordLocks == nil {
		recordLocks = make(map[common.Hash]*sync.Mutex)
	}
	l, exists := recordLocks[id]
	if !exists {
		l = &sync.Mutex{}
		recordLocks[id] = l
	}
	return l
}

// Initialize stores the ledger config on first boot. An existing config is
// left untouched so a restart cannot silently rotate the owner.
func Initialize(ctx context.Context, dbConn *db.DB, cfg *state.LedgerConfig,
	now time.Time) (*state.LedgerConfig, error) {

	ctx, span := trace.StartSpan(ctx, "internal.escrow.Initialize")
	defer span.End()

	existing, err := FetchConfig(ctx, dbConn)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	if cfg.FeeBps > MaxFeeBps {
		return nil, ErrInvalidFeeBps
	}

	cfg.UpdatedAt = now
	if err := SaveConfig(ctx, dbConn, cfg); err != nil {
		return nil, errors.Wrap(err, "save config")
	}

	node.Log(ctx, "Ledger initialized : owner %s authority %s fee %d bps",
		cfg.Owner.Hex(), cfg.Authority.Hex(), cfg.FeeBps)
	return cfg, nil
}

// Deposit creates an escrow record in the pending state and custodies the
// attached value under the record's escrow account. The id is supplied by
// the payer and acts as the nonce binding a proof to this record.
func Deposit(ctx context.Context, dbConn *db.DB, nu *NewEscrow,
	now time.Time) (*state.Escrow, error) {

	ctx, span := trace.StartSpan(ctx, "internal.escrow.Deposit")
	defer span.End()

	if nu.Amount == nil || nu.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	l := lockRecord(nu.ID)
	l.Lock()
	defer l.Unlock()

	if _, err := Fetch(ctx, dbConn, nu.ID); err == nil {
		return nil, ErrDuplicateID
	} else if err != ErrNotFound {
		return nil, err
	}

	// Value and intent are atomic. The attached value lands in the record's
	// own holding account before the record becomes visible.
	account := treasury.EscrowAccount(nu.ID)
	if err := treasury.Deposit(ctx, dbConn, account, nu.Amount, now); err != nil {
		return nil, errors.Wrap(err, "custody funds")
	}

	e := &state.Escrow{
		ID:        nu.ID,
		Payer:     nu.Payer,
		Payee:     nu.Payee,
		Amount:    nu.Amount,
		Status:    state.EscrowPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := Save(ctx, dbConn, e); err != nil {
		return nil, errors.Wrap(err, "save escrow")
	}

	if err := events.Emit(ctx, dbConn, &events.Event{
		Type:     events.Deposited,
		EscrowID: e.ID,
		Payer:    e.Payer,
		Payee:    e.Payee,
		Amount:   e.Amount,
	}); err != nil {
		return nil, errors.Wrap(err, "emit deposited")
	}

	return e, nil
}

// Release disburses a pending escrow to the payee minus the protocol fee.
// Restricted to the settlement authority. The state transition and both
// transfers are one operation. Any transfer refusal leaves the record
// pending for manual intervention.
func Release(ctx context.Context, dbConn *db.DB, caller common.Address,
	id common.Hash, now time.Time) (*state.Escrow, error) {

	ctx, span := trace.StartSpan(ctx, "internal.escrow.Release")
	defer span.End()

	cfg, err := FetchConfig(ctx, dbConn)
	if err != nil {
		return nil, errors.Wrap(err, "fetch config")
	}
	if caller != cfg.Authority {
		return nil, ErrUnauthorized
	}

	l := lockRecord(id)
	l.Lock()
	defer l.Unlock()

	e, err := Fetch(ctx, dbConn, id)
	if err != nil {
		return nil, err
	}
	if e.Status.Terminal() {
		return nil, ErrAlreadySettled
	}

	fee, net := ComputeFee(e.Amount, cfg.FeeBps)

	// Both transfers are one unit. A refused destination aborts the whole
	// disbursement with the record still pending and the funds still held.
	payments := []treasury.Payment{{To: e.Payee, Amount: net}}
	if fee.Sign() > 0 {
		payments = append(payments, treasury.Payment{To: cfg.FeeRecipient, Amount: fee})
	}

	account := treasury.EscrowAccount(id)
	if err := treasury.Disburse(ctx, dbConn, account, payments, now); err != nil {
		return nil, errors.Wrap(err, "disburse")
	}

	e.Status = state.EscrowReleased
	e.Fee = fee
	e.SettlementRef = uuid.New().String()
	e.UpdatedAt = now
	e.SettledAt = now

	if err := Save(ctx, dbConn, e); err != nil {
		return nil, errors.Wrap(err, "save escrow")
	}

	if err := events.Emit(ctx, dbConn, &events.Event{
		Type:      events.Released,
		EscrowID:  e.ID,
		Payee:     e.Payee,
		Amount:    net,
		Fee:       fee,
		Reference: e.SettlementRef,
	}); err != nil {
		return nil, errors.Wrap(err, "emit released")
	}

	return e, nil
}

// Refund returns the full deposited amount to the payer. No fee is deducted
// on refund regardless of the fee config, so a failed verification never
// costs the payer. Restricted to the settlement authority.
func Refund(ctx context.Context, dbConn *db.DB, caller common.Address,
	id common.Hash, now time.Time) (*state.Escrow, error) {

	ctx, span := trace.StartSpan(ctx, "internal.escrow.Refund")
	defer span.End()

	cfg, err := FetchConfig(ctx, dbConn)
	if err != nil {
		return nil, errors.Wrap(err, "fetch config")
	}
	if caller != cfg.Authority {
		return nil, ErrUnauthorized
	}

	l := lockRecord(id)
	l.Lock()
	defer l.Unlock()

	e, err := Fetch(ctx, dbConn, id)
	if err != nil {
		return nil, err
	}
	if e.Status.Terminal() {
		return nil, ErrAlreadySettled
	}

	account := treasury.EscrowAccount(id)
	if err := treasury.Move(ctx, dbConn, account, e.Payer, e.Amount, now); err != nil {
		return nil, errors.Wrap(err, "repay payer")
	}

	e.Status = state.EscrowRefunded
	e.SettlementRef = uuid.New().String()
	e.UpdatedAt = now
	e.SettledAt = now

	if err := Save(ctx, dbConn, e); err != nil {
		return nil, errors.Wrap(err, "save escrow")
	}

	if err := events.Emit(ctx, dbConn, &events.Event{
		Type:      events.Refunded,
		EscrowID:  e.ID,
		Payer:     e.Payer,
		Amount:    e.Amount,
		Reference: e.SettlementRef,
	}); err != nil {
		return nil, errors.Wrap(err, "emit refunded")
	}

	return e, nil
}

// Retrieve gets the specified escrow record from the database.
func Retrieve(ctx context.Context, dbConn *db.DB, id common.Hash) (*state.Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.escrow.Retrieve")
	defer span.End()

	return Fetch(ctx, dbConn, id)
}

// SetAuthority rotates the settlement authority. Owner only.
func SetAuthority(ctx context.Context, dbConn *db.DB, caller common.Address,
	authority common.Address, now time.Time) error {

	ctx, span := trace.StartSpan(ctx, "internal.escrow.SetAuthority")
	defer span.End()

	cfg, err := FetchConfig(ctx, dbConn)
	if err != nil {
		return errors.Wrap(err, "fetch config")
	}
	if caller != cfg.Owner {
		return ErrUnauthorized
	}

	cfg.Authority = authority
	cfg.UpdatedAt = now

	if err := SaveConfig(ctx, dbConn, cfg); err != nil {
		return errors.Wrap(err, "save config")
	}

	node.Log(ctx, "Settlement authority rotated : %s", authority.Hex())
	return nil
}

// SetFeeConfig updates the fee recipient and basis points. Owner only.
// Rejects bps above 10000.
func SetFeeConfig(ctx context.Context, dbConn *db.DB, caller common.Address,
	recipient common.Address, feeBps uint32, now time.Time) error {

	ctx, span := trace.StartSpan(ctx, "internal.escrow.SetFeeConfig")
	defer span.End()

	cfg, err := FetchConfig(ctx, dbConn)
	if err != nil {
		return errors.Wrap(err, "fetch config")
	}
	if caller != cfg.Owner {
		return ErrUnauthorized
	}
	if feeBps > MaxFeeBps {
		return ErrInvalidFeeBps
	}

	cfg.FeeRecipient = recipient
	cfg.FeeBps = feeBps
	cfg.UpdatedAt = now

	if err := SaveConfig(ctx, dbConn, cfg); err != nil {
		return errors.Wrap(err, "save config")
	}

	node.Log(ctx, "Fee config updated : recipient %s bps %d", recipient.Hex(), feeBps)
	return nil
}
