package treasury

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const storageKey = "accounts"

// ErrNotFound abstracts the standard not found error.
var ErrNotFound = errors.New("Account not found")

// Save puts a single account in storage.
func Save(ctx context.Context, dbConn *db.DB, a *state.Account) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "marshal account")
	}

	return dbConn.Put(ctx, buildStoragePath(a.Address), b)
}

// Fetch a single account from storage.
func Fetch(ctx context.Context, dbConn *db.DB, address common.Address) (*state.Account, error) {
	b, err := dbConn.Fetch(ctx, buildStoragePath(address))
	if err != nil {
		if err == db.ErrNotFound {
			err = ErrNotFound
		}

		return nil, err
	}

	a := state.Account{}
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrap(err, "unmarshal account")
	}

	return &a, nil
}

// Returns the storage path prefix for a given identifier.
func buildStoragePath(address common.Address) string {
	return fmt.Sprintf("%s/%x", storageKey, address)
}
