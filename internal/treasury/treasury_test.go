package treasury

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/datamarket/escrow-agent/internal/platform/tests"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

func setup(t *testing.T) (context.Context, *tests.Test) {
	ctx := tests.Context()

	test := &tests.Test{}
	if err := test.Setup(ctx); err != nil {
		t.Fatalf("Failed to setup test : %s", err)
	}
	t.Cleanup(func() { test.TearDown() })

	return ctx, test
}

func TestDepositAndBalance(t *testing.T) {
	ctx, test := setup(t)

	address := tests.RandomAddress()

	balance, err := Balance(ctx, test.DB, address)
	if err != nil {
		t.Fatalf("Failed to fetch balance : %s", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("Unknown account should have zero balance : %s", balance)
	}

	if err := Deposit(ctx, test.DB, address, big.NewInt(500), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}
	if err := Deposit(ctx, test.DB, address, big.NewInt(250), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}

	balance, err = Balance(ctx, test.DB, address)
	if err != nil {
		t.Fatalf("Failed to fetch balance : %s", err)
	}
	if balance.Int64() != 750 {
		t.Fatalf("Wrong balance : got %s, want 750", balance)
	}
}

func TestMove(t *testing.T) {
	ctx, test := setup(t)

	from := tests.RandomAddress()
	to := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, from, big.NewInt(1000), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}

	if err := Move(ctx, test.DB, from, to, big.NewInt(400), time.Now()); err != nil {
		t.Fatalf("Failed to move : %s", err)
	}

	fromBalance, _ := Balance(ctx, test.DB, from)
	toBalance, _ := Balance(ctx, test.DB, to)
	if fromBalance.Int64() != 600 || toBalance.Int64() != 400 {
		t.Fatalf("Wrong balances : got %s/%s, want 600/400", fromBalance, toBalance)
	}
}

func TestMoveInsufficient(t *testing.T) {
	ctx, test := setup(t)

	from := tests.RandomAddress()
	to := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, from, big.NewInt(100), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}

	if err := Move(ctx, test.DB, from, to, big.NewInt(101), time.Now()); errors.Cause(err) != ErrInsufficientFunds {
		t.Fatalf("Expected ErrInsufficientFunds : got %v", err)
	}

	// Neither account changed.
	fromBalance, _ := Balance(ctx, test.DB, from)
	toBalance, _ := Balance(ctx, test.DB, to)
	if fromBalance.Int64() != 100 || toBalance.Sign() != 0 {
		t.Fatalf("Balances changed on failed move : %s/%s", fromBalance, toBalance)
	}
}

func TestMoveFrozen(t *testing.T) {
	ctx, test := setup(t)

	from := tests.RandomAddress()
	to := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, from, big.NewInt(100), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}
	if err := Freeze(ctx, test.DB, to, true, time.Now()); err != nil {
		t.Fatalf("Failed to freeze : %s", err)
	}

	if ok, err := CanAccept(ctx, test.DB, to); err != nil || ok {
		t.Fatalf("Frozen account reported as accepting : %v %v", ok, err)
	}

	if err := Move(ctx, test.DB, from, to, big.NewInt(50), time.Now()); errors.Cause(err) != ErrAccountFrozen {
		t.Fatalf("Expected ErrAccountFrozen : got %v", err)
	}

	fromBalance, _ := Balance(ctx, test.DB, from)
	if fromBalance.Int64() != 100 {
		t.Fatalf("Source changed on failed move : %s", fromBalance)
	}

	// Thawing restores transfers.
	if err := Freeze(ctx, test.DB, to, false, time.Now()); err != nil {
		t.Fatalf("Failed to unfreeze : %s", err)
	}
	if err := Move(ctx, test.DB, from, to, big.NewInt(50), time.Now()); err != nil {
		t.Fatalf("Failed to move after unfreeze : %s", err)
	}
}

func TestMoveSelf(t *testing.T) {
	ctx, test := setup(t)

	address := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, address, big.NewInt(100), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}

	// A self transfer must not mint or destroy value.
	if err := Move(ctx, test.DB, address, address, big.NewInt(60), time.Now()); err != nil {
		t.Fatalf("Failed to self move : %s", err)
	}

	balance, err := Balance(ctx, test.DB, address)
	if err != nil {
		t.Fatalf("Failed to fetch balance : %s", err)
	}
	if balance.Int64() != 100 {
		t.Fatalf("Wrong balance after self move : got %s, want 100", balance)
	}

	if err := Move(ctx, test.DB, address, address, big.NewInt(101), time.Now()); errors.Cause(err) != ErrInsufficientFunds {
		t.Fatalf("Expected ErrInsufficientFunds : got %v", err)
	}
}

func TestDisburse(t *testing.T) {
	ctx, test := setup(t)

	from := tests.RandomAddress()
	first := tests.RandomAddress()
	second := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, from, big.NewInt(1000), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}

	payments := []Payment{
		{To: first, Amount: big.NewInt(400)},
		{To: second, Amount: big.NewInt(100)},
	}
	if err := Disburse(ctx, test.DB, from, payments, time.Now()); err != nil {
		t.Fatalf("Failed to disburse : %s", err)
	}

	fromBalance, _ := Balance(ctx, test.DB, from)
	firstBalance, _ := Balance(ctx, test.DB, first)
	secondBalance, _ := Balance(ctx, test.DB, second)
	if fromBalance.Int64() != 500 || firstBalance.Int64() != 400 || secondBalance.Int64() != 100 {
		t.Fatalf("Wrong balances : got %s/%s/%s, want 500/400/100",
			fromBalance, firstBalance, secondBalance)
	}
}

func TestDisburseAllOrNothing(t *testing.T) {
	ctx, test := setup(t)

	from := tests.RandomAddress()
	first := tests.RandomAddress()
	second := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, from, big.NewInt(1000), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}
	if err := Freeze(ctx, test.DB, second, true, time.Now()); err != nil {
		t.Fatalf("Failed to freeze : %s", err)
	}

	payments := []Payment{
		{To: first, Amount: big.NewInt(400)},
		{To: second, Amount: big.NewInt(100)},
	}
	if err := Disburse(ctx, test.DB, from, payments, time.Now()); errors.Cause(err) != ErrAccountFrozen {
		t.Fatalf("Expected ErrAccountFrozen : got %v", err)
	}

	// One refused destination means no account changed.
	fromBalance, _ := Balance(ctx, test.DB, from)
	firstBalance, _ := Balance(ctx, test.DB, first)
	secondBalance, _ := Balance(ctx, test.DB, second)
	if fromBalance.Int64() != 1000 || firstBalance.Sign() != 0 || secondBalance.Sign() != 0 {
		t.Fatalf("Balances changed on failed disburse : %s/%s/%s",
			fromBalance, firstBalance, secondBalance)
	}
}

func TestDisburseSharedDestination(t *testing.T) {
	ctx, test := setup(t)

	from := tests.RandomAddress()
	to := tests.RandomAddress()

	if err := Deposit(ctx, test.DB, from, big.NewInt(1000), time.Now()); err != nil {
		t.Fatalf("Failed to deposit : %s", err)
	}

	// Repeated destinations accumulate instead of clobbering each other.
	payments := []Payment{
		{To: to, Amount: big.NewInt(400)},
		{To: to, Amount: big.NewInt(100)},
	}
	if err := Disburse(ctx, test.DB, from, payments, time.Now()); err != nil {
		t.Fatalf("Failed to disburse : %s", err)
	}

	fromBalance, _ := Balance(ctx, test.DB, from)
	toBalance, _ := Balance(ctx, test.DB, to)
	if fromBalance.Int64() != 500 || toBalance.Int64() != 500 {
		t.Fatalf("Wrong balances : got %s/%s, want 500/500", fromBalance, toBalance)
	}
}

func TestMoveInvalidAmount(t *testing.T) {
	ctx, test := setup(t)

	if err := Move(ctx, test.DB, tests.RandomAddress(), tests.RandomAddress(),
		nil, time.Now()); errors.Cause(err) != ErrInvalidAmount {
		t.Fatalf("Expected ErrInvalidAmount : got %v", err)
	}
	if err := Move(ctx, test.DB, tests.RandomAddress(), tests.RandomAddress(),
		big.NewInt(-1), time.Now()); errors.Cause(err) != ErrInvalidAmount {
		t.Fatalf("Expected ErrInvalidAmount : got %v", err)
	}
}

func TestEscrowAccountDerivation(t *testing.T) {
	a := tests.RandomHash()
	b := tests.RandomHash()

	if EscrowAccount(a) != EscrowAccount(a) {
		t.Fatalf("Derivation not deterministic")
	}
	if EscrowAccount(a) == EscrowAccount(b) {
		t.Fatalf("Different ids derived the same account")
	}

	// An id whose trailing bytes are a known address must not derive that
	// address, or a depositor could custody funds directly under a payee.
	target := tests.RandomAddress()
	var crafted common.Hash
	copy(crafted[12:], target[:])
	if EscrowAccount(crafted) == target {
		t.Fatalf("Crafted id derived the embedded address")
	}
}
