package cmd

import (
	"encoding/json"
	"time"

	"github.com/datamarket/escrow-agent/internal/escrow"
	"github.com/datamarket/escrow-agent/internal/settlement"
	"github.com/datamarket/escrow-agent/pkg/verifier"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdSettle = &cobra.Command{
	Use:   "settle <id> <subject> <proof-json>",
	Short: "Verify a proof and settle the escrow directly against storage.",
	Long: "Verify a proof and settle the escrow directly against storage.\n" +
		"Uses the configured verify endpoint, or the permissive local stub when none is set.",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 3 {
			return errors.New("Missing arguments")
		}

		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		if !common.IsHexAddress(args[1]) {
			return errors.New("Invalid subject address")
		}

		ctx := newContext()

		cfg, err := newConfig()
		if err != nil {
			return err
		}

		masterDB, err := newMasterDB(cfg)
		if err != nil {
			return err
		}
		defer masterDB.Close()

		ledgerCfg, err := escrow.FetchConfig(ctx, masterDB)
		if err != nil {
			return errors.Wrap(err, "fetch ledger config")
		}

		verifierClient := verifier.NewClient(verifier.Config{
			Endpoint: cfg.Verifier.Endpoint,
			Key:      cfg.Verifier.Key,
		})

		orchestrator := settlement.NewOrchestrator(masterDB, verifierClient,
			ledgerCfg.Authority, time.Duration(cfg.Verifier.RequestTimeout))

		outcome, err := orchestrator.Settle(ctx, &settlement.Request{
			EscrowID: id,
			Subject:  common.HexToAddress(args[1]),
			Proof:    json.RawMessage(args[2]),
		})
		if err != nil {
			return err
		}

		return dumpJSON(outcome)
	},
}
