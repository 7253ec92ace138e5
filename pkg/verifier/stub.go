package verifier

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// StubClient accepts any structured proof bound to a non-zero escrow id.
// This is the degraded trust mode for local development when no verify
// endpoint is configured. It must never be selected in production.
type StubClient struct{}

// NewStubClient creates a permissive local development verifier.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// GetURL returns an empty URL. The stub performs no I/O.
func (c *StubClient) GetURL() string {
	return ""
}

// Verify accepts the proof when it is a JSON object and the escrow id is
// present. The subject and attributes are not inspected.
func (c *StubClient) Verify(ctx context.Context, proof json.RawMessage,
	escrowID common.Hash, subject common.Address,
	attributes json.RawMessage) (bool, error) {

	if escrowID == (common.Hash{}) {
		return false, nil
	}

	// A JSON null decodes into a nil map without error and is not a
	// structured payload.
	var structured map[string]json.RawMessage
	if err := json.Unmarshal(proof, &structured); err != nil || structured == nil {
		return false, nil
	}

	return true, nil
}
