package cmd

import (
	"math/big"
	"time"

	"github.com/datamarket/escrow-agent/internal/escrow"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdDeposit = &cobra.Command{
	Use:   "deposit <id> <payer> <payee> <amount>",
	Short: "Deposit value against a new escrow id.",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 4 {
			return errors.New("Missing arguments")
		}

		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		if !common.IsHexAddress(args[1]) {
			return errors.New("Invalid payer address")
		}
		if !common.IsHexAddress(args[2]) {
			return errors.New("Invalid payee address")
		}
		amount, ok := new(big.Int).SetString(args[3], 10)
		if !ok {
			return errors.New("Invalid amount")
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

		e, err := escrow.Deposit(ctx, masterDB, &escrow.NewEscrow{
			ID:     id,
			Payer:  common.HexToAddress(args[1]),
			Payee:  common.HexToAddress(args[2]),
			Amount: amount,
		}, time.Now())
		if err != nil {
			return err
		}

		return dumpJSON(e)
	},
}
