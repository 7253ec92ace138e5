// Package events persists the append-only audit trail of escrow outcomes.
// Emitted events are the only settlement history kept; records themselves
// only carry their current state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

const storageKey = "events"

// Type names an observable escrow outcome.
type Type string

const (
	Deposited Type = "Deposited"
	Released  Type = "Released"
	Refunded  Type = "Refunded"
)

// Event is one entry in the audit trail.
type Event struct {
	Type     Type        `json:"type"`
	EscrowID common.Hash `json:"escrow_id"`

	// Payer is set on Deposited and Refunded, Payee on Deposited and
	// Released.
	Payer common.Address `json:"payer,omitempty"`
	Payee common.Address `json:"payee,omitempty"`

	// Amount is the deposited amount for Deposited and Refunded, and the net
	// paid to the payee for Released.
	Amount *big.Int `json:"amount"`
	Fee    *big.Int `json:"fee,omitempty"`

	Reference string    `json:"reference,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence needed by the event log. *db.DB satisfies it.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
	Fetch(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, key string) ([]string, error)
}

// Emit appends an event to the audit trail and logs it.
func Emit(ctx context.Context, store Store, e *Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	key := buildStoragePath(e.EscrowID, e.Timestamp)
	if err := store.Put(ctx, key, b); err != nil {
		return errors.Wrap(err, "store event")
	}

	logger.Info(ctx, "Event %s : escrow %x amount %s", e.Type, e.EscrowID, e.Amount)
	return nil
}

// List returns all events emitted for an escrow id, oldest first.
func List(ctx context.Context, store Store, escrowID common.Hash) ([]*Event, error) {
	keys, err := store.List(ctx, fmt.Sprintf("%s/%x", storageKey, escrowID))
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}

	result := make([]*Event, 0, len(keys))
	for _, key := range keys {
		b, err := store.Fetch(ctx, key)
		if err != nil {
			return nil, errors.Wrap(err, key)
		}

		e := &Event{}
		if err := json.Unmarshal(b, e); err != nil {
			return nil, errors.Wrap(err, "unmarshal event")
		}

		result = append(result, e)
	}

	return result, nil
}

// Keys are zero padded so lexical storage order is emission order. The
// random suffix keeps same-nanosecond events from overwriting each other.
func buildStoragePath(id common.Hash, ts time.Time) string {
	return fmt.Sprintf("%s/%x/%020d-%s", storageKey, id, ts.UnixNano(), uuid.New())
}
