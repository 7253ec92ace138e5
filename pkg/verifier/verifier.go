// Package verifier provides clients for the external proof verification
// service. A proof is only valid for the escrow id it was produced for, so
// the id is sent with every verification as the binding nonce.
package verifier

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Client is the verification capability consumed by the settlement
// orchestrator. Verify reports whether the proof is valid for the given
// nonce and subject. Any error means "not verified" to the caller.
type Client interface {
	Verify(ctx context.Context, proof json.RawMessage, escrowID common.Hash,
		subject common.Address, attributes json.RawMessage) (bool, error)

	// GetURL returns the verifier's service URL, empty for the stub.
	GetURL() string
}

// Config selects and configures the concrete client.
type Config struct {
	Endpoint string // Empty selects the local development stub.
	Key      string // Static bearer credential for the endpoint.

	// A signer takes precedence over the static key when present.
	Signer *TokenSigner
}

// NewClient creates the client for the config. The variant is fixed at
// construction, never chosen inside the settlement path.
func NewClient(cfg Config) Client {
	if len(cfg.Endpoint) == 0 {
		return NewStubClient()
	}
	return NewHTTPClient(cfg.Endpoint, cfg.Key, cfg.Signer)
}
