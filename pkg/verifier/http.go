package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// HTTPClient implements the client interface to perform HTTP requests to a
// proof verification service.
type HTTPClient struct {
	URL    string
	Key    string
	Signer *TokenSigner
}

// NewHTTPClient creates an HTTP verifier client from specified data.
func NewHTTPClient(url, key string, signer *TokenSigner) *HTTPClient {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return &HTTPClient{
		URL:    url,
		Key:    key,
		Signer: signer,
	}
}

// GetURL returns the verifier's service URL.
func (c *HTTPClient) GetURL() string {
	return c.URL
}

// Verify posts the proof with its binding nonce to the verification
// endpoint. Anything other than a well formed {"ok":true} response is not
// verified.
func (c *HTTPClient) Verify(ctx context.Context, proof json.RawMessage,
	escrowID common.Hash, subject common.Address,
	attributes json.RawMessage) (bool, error) {

	request := struct {
		Proof       json.RawMessage `json:"proof"`
		EscrowID    common.Hash     `json:"escrowId"`
		UserAddress common.Address  `json:"userAddress"`
		Attributes  json.RawMessage `json:"attributes,omitempty"`
	}{
		Proof:       proof,
		EscrowID:    escrowID,
		UserAddress: subject,
		Attributes:  attributes,
	}

	var response struct {
		Ok bool `json:"ok"`
	}

	if err := c.post(ctx, c.URL, request, &response); err != nil {
		return false, errors.Wrap(err, "http post")
	}

	return response.Ok, nil
}

// post sends an HTTP POST request.
func (c *HTTPClient) post(ctx context.Context, url string, request,
	response interface{}) error {

	var transport = &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 5 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	var client = &http.Client{
		Timeout:   time.Second * 10,
		Transport: transport,
	}

	b, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "create request")
	}

	httpRequest.Header.Set("Content-Type", "application/json")

	if token, err := c.authToken(); err != nil {
		return errors.Wrap(err, "auth token")
	} else if len(token) > 0 {
		httpRequest.Header.Set("Authorization", "Bearer "+token)
	}

	httpResponse, err := client.Do(httpRequest)
	if err != nil {
		return err
	}

	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return fmt.Errorf("%v %s", httpResponse.StatusCode, httpResponse.Status)
	}

	if response != nil {
		if err := json.NewDecoder(httpResponse.Body).Decode(response); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}

	return nil
}

func (c *HTTPClient) authToken() (string, error) {
	if c.Signer != nil {
		return c.Signer.Token()
	}
	return c.Key, nil
}
