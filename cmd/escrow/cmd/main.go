package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datamarket/escrow-agent/internal/platform/config"
	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/node"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var escrowCmd = &cobra.Command{
	Use:   "escrow",
	Short: "Escrow Agent CLI",
}

func Execute() {
	escrowCmd.AddCommand(cmdDeposit)
	escrowCmd.AddCommand(cmdState)
	escrowCmd.AddCommand(cmdEvents)
	escrowCmd.AddCommand(cmdSettle)
	escrowCmd.Execute()
}

func newContext() context.Context {
	return node.ContextWithDevelopmentLogger(context.Background(), "text")
}

func newConfig() (*config.Config, error) {
	return config.Environment()
}

func newMasterDB(cfg *config.Config) (*db.DB, error) {
	return db.New(&db.StorageConfig{
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKeyID,
		Secret:    cfg.AWS.SecretAccessKey,
		Bucket:    cfg.Storage.Bucket,
		Root:      cfg.Storage.Root,
	})
}

func parseHash(s string) (common.Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, errors.New("Invalid escrow id")
	}
	return common.BytesToHash(b), nil
}

func dumpJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", b)
	return nil
}
