package verifier

import (
	"crypto/rsa"
	"io/ioutil"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// partnerTokenLifetime keeps partner tokens short lived. The verifier
// service rejects expired tokens, and a fresh one is signed per request.
const partnerTokenLifetime = 5 * time.Minute

// TokenSigner mints the RS256 partner tokens that authenticate this agent
// to the verifier service and to the consent UI.
type TokenSigner struct {
	PartnerID string
	KeyID     string

	key *rsa.PrivateKey
}

// NewTokenSigner creates a signer from a PEM encoded RSA private key.
func NewTokenSigner(partnerID, keyID string, keyPEM []byte) (*TokenSigner, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	return &TokenSigner{
		PartnerID: partnerID,
		KeyID:     keyID,
		key:       key,
	}, nil
}

// NewTokenSignerFromFile creates a signer from a PEM key file on disk.
func NewTokenSignerFromFile(partnerID, keyID, path string) (*TokenSigner, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}

	return NewTokenSigner(partnerID, keyID, b)
}

// Token signs a fresh partner token.
func (s *TokenSigner) Token() (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"partnerId": s.PartnerID,
		"iat":       now.Unix(),
		"exp":       now.Add(partnerTokenLifetime).Unix(),
	})
	token.Header["kid"] = s.KeyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}

	return signed, nil
}
