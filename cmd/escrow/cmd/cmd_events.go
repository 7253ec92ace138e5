package cmd

import (
	"github.com/datamarket/escrow-agent/pkg/events"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdEvents = &cobra.Command{
	Use:   "events <id>",
	Short: "Print the audit trail for an escrow id, oldest first.",
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

		result, err := events.List(ctx, masterDB, id)
		if err != nil {
			return err
		}

		return dumpJSON(result)
	},
}
