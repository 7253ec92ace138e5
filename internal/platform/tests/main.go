package tests

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/node"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Test holds the shared fixtures for package tests.
type Test struct {
	DB          *db.DB
	StoragePath string

	Owner        common.Address
	Authority    common.Address
	FeeRecipient common.Address
}

// Setup creates a filesystem backed db under a unique temp root and a set
// of distinct identities.
func (test *Test) Setup(ctx context.Context) error {
	test.StoragePath = filepath.Join(os.TempDir(),
		fmt.Sprintf("escrow-agent-test-%d", time.Now().UnixNano()))

	var err error
	test.DB, err = db.New(&db.StorageConfig{
		Bucket: "standalone",
		Root:   test.StoragePath,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to create DB")
	}

	test.Owner = RandomAddress()
	test.Authority = RandomAddress()
	test.FeeRecipient = RandomAddress()

	return nil
}

// TearDown removes everything Setup created.
func (test *Test) TearDown() error {
	if test.DB != nil {
		test.DB.Close()
	}
	if len(test.StoragePath) > 0 {
		return os.RemoveAll(test.StoragePath)
	}
	return nil
}

// Context returns a context with a development logger attached.
func Context() context.Context {
	return node.ContextWithDevelopmentLogger(context.Background(), "text")
}

var testHelperRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomHash returns a random 256 bit identifier.
func RandomHash() common.Hash {
	var data [32]byte
	for i := range data {
		data[i] = byte(testHelperRand.Intn(256))
	}
	return common.BytesToHash(data[:])
}

// RandomAddress returns a random identity.
func RandomAddress() common.Address {
	var data [20]byte
	for i := range data {
		data[i] = byte(testHelperRand.Intn(256))
	}
	return common.BytesToAddress(data[:])
}
