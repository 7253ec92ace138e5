// Package settlement orchestrates proof verification and escrow
// settlement. The orchestrator keeps no state of its own. Every outcome is
// derived from exactly one verifier call and at most one ledger call, so a
// failed call leaves the record pending and safe to retry.
package settlement

import (
	"context"
	"time"

	"github.com/datamarket/escrow-agent/internal/escrow"
	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/node"
	"github.com/datamarket/escrow-agent/pkg/verifier"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// ErrMalformedRequest occurs when the escrow id, proof, or subject address
// is missing. No verifier or ledger call is attempted.
var ErrMalformedRequest = errors.New("Settlement request malformed")

// DefaultVerifyTimeout bounds the verifier round trip. A verifier that
// hangs must resolve to refund, not block settlement forever.
const DefaultVerifyTimeout = 10 * time.Second

// Orchestrator drives an escrow to a terminal state based on the verifier's
// answer. It acts as the ledger's settlement authority.
type Orchestrator struct {
	dbConn    *db.DB
	verifier  verifier.Client
	authority common.Address
	timeout   time.Duration
}

// NewOrchestrator creates an orchestrator. A zero timeout selects
// DefaultVerifyTimeout.
func NewOrchestrator(dbConn *db.DB, v verifier.Client, authority common.Address,
	timeout time.Duration) *Orchestrator {

	if timeout == 0 {
		timeout = DefaultVerifyTimeout
	}

	return &Orchestrator{
		dbConn:    dbConn,
		verifier:  v,
		authority: authority,
		timeout:   timeout,
	}
}

// Settle verifies the proof against the escrow id and releases or refunds
// the escrow. Verification is fail closed. A transport error, timeout, or
// malformed verifier response refunds the payer, never pays the payee.
// Ledger failures are returned to the caller as errors, never reinterpreted
// as success.
func (o *Orchestrator) Settle(ctx context.Context, req *Request) (*Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "internal.settlement.Settle")
	defer span.End()

	if req.EscrowID == (common.Hash{}) || len(req.Proof) == 0 ||
		req.Subject == (common.Address{}) {
		return nil, ErrMalformedRequest
	}

	verifyCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ok, err := o.verifier.Verify(verifyCtx, req.Proof, req.EscrowID, req.Subject,
		req.Attributes)
	if err != nil {
		node.LogWarn(ctx, "Verification failed closed : escrow %x : %s", req.EscrowID, err)
		ok = false
	}

	now := time.Now()

	if !ok {
		e, err := escrow.Refund(ctx, o.dbConn, o.authority, req.EscrowID, now)
		if err != nil {
			return nil, errors.Wrap(err, "refund")
		}

		node.Log(ctx, "Escrow refunded : %x ref %s", e.ID, e.SettlementRef)
		return &Outcome{
			EscrowID:    e.ID,
			Disposition: Refunded,
			Reference:   e.SettlementRef,
		}, nil
	}

	e, err := escrow.Release(ctx, o.dbConn, o.authority, req.EscrowID, now)
	if err != nil {
		return nil, errors.Wrap(err, "release")
	}

	node.Log(ctx, "Escrow released : %x ref %s", e.ID, e.SettlementRef)
	return &Outcome{
		EscrowID:    e.ID,
		Disposition: Released,
		Reference:   e.SettlementRef,
	}, nil
}
