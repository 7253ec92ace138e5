package cmd

import (
	"fmt"

	"github.com/datamarket/escrow-agent/internal/escrow"
	"github.com/datamarket/escrow-agent/internal/treasury"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdState = &cobra.Command{
	Use:   "state <id>",
	Short: "Load and print an escrow record with its holding balance.",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("Missing escrow id")
		}

		id, err := parseHash(args[0])
		if err != nil {
			return err
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

		e, err := escrow.Retrieve(ctx, masterDB, id)
		if err != nil {
			return err
		}

		fmt.Printf("# Escrow %x\n\n", e.ID)

		if err := dumpJSON(e); err != nil {
			return err
		}

		balance, err := treasury.Balance(ctx, masterDB, treasury.EscrowAccount(id))
		if err != nil {
			return err
		}

		fmt.Printf("Held balance : %s\n", balance)
		return nil
	},
}
