package escrow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	storageKey       = "escrows"
	configStorageKey = "ledger/config"
)

// Save puts a single escrow record in storage.
func Save(ctx context.Context, dbConn *db.DB, e *state.Escrow) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal escrow")
	}

	return dbConn.Put(ctx, buildStoragePath(e.ID), b)
}

// Fetch a single escrow record from storage.
func Fetch(ctx context.Context, dbConn *db.DB, id common.Hash) (*state.Escrow, error) {
	b, err := dbConn.Fetch(ctx, buildStoragePath(id))
	if err != nil {
		if err == db.ErrNotFound {
			err = ErrNotFound
		}

		return nil, err
	}

	e := state.Escrow{}
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "unmarshal escrow")
	}

	return &e, nil
}

// SaveConfig puts the ledger config in storage.
func SaveConfig(ctx context.Context, dbConn *db.DB, cfg *state.LedgerConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	return dbConn.Put(ctx, configStorageKey, b)
}

// FetchConfig gets the ledger config from storage.
func FetchConfig(ctx context.Context, dbConn *db.DB) (*state.LedgerConfig, error) {
	b, err := dbConn.Fetch(ctx, configStorageKey)
	if err != nil {
		if err == db.ErrNotFound {
			err = ErrNotFound
		}

		return nil, err
	}

	cfg := state.LedgerConfig{}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return &cfg, nil
}

// Returns the storage path prefix for a given identifier.
func buildStoragePath(id common.Hash) string {
	return fmt.Sprintf("%s/%x", storageKey, id)
}
