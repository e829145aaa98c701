// Package cdp implements a hosted signer backed by Coinbase Developer
// Platform server wallets. Keys stay with CDP; the signer asks the API to
// sign unlock challenges with the account's key.
package cdp

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

const (
	bearerTokenTTL = 2 * time.Minute
	walletTokenTTL = time.Minute
	apiHost        = "api.cdp.coinbase.com"
)

// Auth issues the JWTs CDP requires: a bearer token on every request and a
// wallet token on signing requests. It is immutable and safe for concurrent use.
type Auth struct {
	apiKeyName   string
	walletSecret string
	privateKey   crypto.Signer
	now          func() time.Time
}

// claims are the CDP request claims.
type claims struct {
	*jwt.Claims
	URI     string `json:"uri"`
	ReqHash string `json:"reqHash,omitempty"`
}

// NewAuth parses a PEM-encoded ECDSA or Ed25519 API key. walletSecret may be
// empty when no signing requests are made.
func NewAuth(apiKeyName, apiKeySecret, walletSecret string) (*Auth, error) {
	if apiKeyName == "" {
		return nil, fmt.Errorf("cdp: api key name must not be empty")
	}

	block, _ := pem.Decode([]byte(apiKeySecret))
	if block == nil {
		return nil, fmt.Errorf("cdp: api key secret is not PEM encoded")
	}

	signer, err := parseKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	return &Auth{
		apiKeyName:   apiKeyName,
		walletSecret: walletSecret,
		privateKey:   signer,
		now:          time.Now,
	}, nil
}

// parseKey accepts SEC 1 EC keys and PKCS #8 ECDSA or Ed25519 keys.
func parseKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("cdp: parse api key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("cdp: unsupported api key type %T", key)
	}
	return signer, nil
}

// BearerToken returns the Authorization token for method and path.
func (a *Auth) BearerToken(method, path string) (string, error) {
	return a.token(method, path, nil, bearerTokenTTL)
}

// WalletToken returns the X-Wallet-Auth token for a signing request. It binds
// the SHA-256 of body.
func (a *Auth) WalletToken(method, path string, body []byte) (string, error) {
	if a.walletSecret == "" {
		return "", fmt.Errorf("cdp: wallet secret is required for signing")
	}
	sum := sha256.Sum256(body)
	return a.token(method, path, sum[:], walletTokenTTL)
}

func (a *Auth) token(method, path string, bodyHash []byte, ttl time.Duration) (string, error) {
	alg := jose.EdDSA
	if _, ok := a.privateKey.(*ecdsa.PrivateKey); ok {
		alg = jose.ES256
	}

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: a.privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", a.apiKeyName),
	)
	if err != nil {
		return "", fmt.Errorf("cdp: create jwt signer: %w", err)
	}

	now := a.now()
	c := &claims{
		Claims: &jwt.Claims{
			Subject:   a.apiKeyName,
			Issuer:    "coinbase-cloud",
			NotBefore: jwt.NewNumericDate(now),
			Expiry:    jwt.NewNumericDate(now.Add(ttl)),
		},
		URI: fmt.Sprintf("%s %s%s", method, apiHost, path),
	}
	if len(bodyHash) > 0 {
		c.ReqHash = hex.EncodeToString(bodyHash)
	}

	token, err := jwt.Signed(sig).Claims(c).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("cdp: serialize jwt: %w", err)
	}
	return token, nil
}
