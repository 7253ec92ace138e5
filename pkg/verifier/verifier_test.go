package verifier

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

var (
	testID      = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	testSubject = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testProof   = json.RawMessage(`{"credential":"zk"}`)
)

func TestHTTPClientVerified(t *testing.T) {
	ctx := context.Background()

	var received struct {
		Proof       json.RawMessage `json:"proof"`
		EscrowID    common.Hash     `json:"escrowId"`
		UserAddress common.Address  `json:"userAddress"`
	}
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret-key", nil)

	ok, err := client.Verify(ctx, testProof, testID, testSubject, nil)
	if err != nil {
		t.Fatalf("Failed to verify : %s", err)
	}
	if !ok {
		t.Fatalf("Expected verified")
	}

	// The escrow id travels with the proof as the binding nonce.
	if received.EscrowID != testID {
		t.Fatalf("Nonce not sent : got %x, want %x", received.EscrowID, testID)
	}
	if received.UserAddress != testSubject {
		t.Fatalf("Subject not sent : got %x, want %x", received.UserAddress, testSubject)
	}
	if authHeader != "Bearer secret-key" {
		t.Fatalf("Wrong auth header : %q", authHeader)
	}
}

func TestHTTPClientNotVerified(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"ok": false})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", nil)

	ok, err := client.Verify(ctx, testProof, testID, testSubject, nil)
	if err != nil {
		t.Fatalf("Failed to verify : %s", err)
	}
	if ok {
		t.Fatalf("Expected not verified")
	}
}

func TestHTTPClientErrors(t *testing.T) {
	ctx := context.Background()

	// Server errors and malformed bodies are errors, never verified.
	responses := []http.HandlerFunc{
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		},
	}

	for i, respond := range responses {
		server := httptest.NewServer(respond)

		client := NewHTTPClient(server.URL, "", nil)

		ok, err := client.Verify(ctx, testProof, testID, testSubject, nil)
		if err == nil {
			t.Fatalf("Response %d : expected error", i)
		}
		if ok {
			t.Fatalf("Response %d : expected not verified", i)
		}

		server.Close()
	}
}

func TestHTTPClientUnreachable(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	client := NewHTTPClient(server.URL, "", nil)

	ok, err := client.Verify(ctx, testProof, testID, testSubject, nil)
	if err == nil || ok {
		t.Fatalf("Expected transport error : %v %v", ok, err)
	}
}

func TestStubClient(t *testing.T) {
	ctx := context.Background()

	client := NewStubClient()

	if ok, _ := client.Verify(ctx, testProof, testID, testSubject, nil); !ok {
		t.Fatalf("Structured proof rejected")
	}
	if ok, _ := client.Verify(ctx, json.RawMessage(`"string"`), testID, testSubject, nil); ok {
		t.Fatalf("Unstructured proof accepted")
	}
	if ok, _ := client.Verify(ctx, json.RawMessage(`garbage`), testID, testSubject, nil); ok {
		t.Fatalf("Invalid proof accepted")
	}
	if ok, _ := client.Verify(ctx, json.RawMessage(`null`), testID, testSubject, nil); ok {
		t.Fatalf("Null proof accepted")
	}
	if ok, _ := client.Verify(ctx, testProof, common.Hash{}, testSubject, nil); ok {
		t.Fatalf("Zero escrow id accepted")
	}
}

func TestNewClientSelection(t *testing.T) {
	if _, ok := NewClient(Config{}).(*StubClient); !ok {
		t.Fatalf("Empty endpoint should select the stub")
	}
	if _, ok := NewClient(Config{Endpoint: "verify.example.com"}).(*HTTPClient); !ok {
		t.Fatalf("Endpoint should select the http client")
	}
}

func TestTokenSigner(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key : %s", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	signer, err := NewTokenSigner("partner-1", "key-1", keyPEM)
	if err != nil {
		t.Fatalf("Failed to create signer : %s", err)
	}

	signed, err := signer.Token()
	if err != nil {
		t.Fatalf("Failed to sign token : %s", err)
	}

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	if err != nil {
		t.Fatalf("Failed to parse token : %s", err)
	}
	if !token.Valid {
		t.Fatalf("Token not valid")
	}

	if kid, _ := token.Header["kid"].(string); kid != "key-1" {
		t.Fatalf("Wrong kid : %q", kid)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("Wrong claims type")
	}
	if claims["partnerId"] != "partner-1" {
		t.Fatalf("Wrong partner id : %v", claims["partnerId"])
	}
	if _, present := claims["exp"]; !present {
		t.Fatalf("Missing expiry")
	}
}
