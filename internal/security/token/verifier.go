package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure. Callers must not
// distinguish causes in responses; the detail belongs in logs only.
var ErrInvalidToken = errors.New("invalid_token")

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	// Subject is the stable user identifier. Consent records are always
	// keyed by this value, never by a display field like email.
	Subject string

	// Expiry is the token expiration instant.
	Expiry time.Time

	// Raw holds all claims for callers that need extra fields (e.g.
	// preferred_username for display).
	Raw map[string]any
}

// Username returns preferred_username when present, falling back to the
// subject. Display only.
func (c *Claims) Username() string {
	if v, ok := c.Raw["preferred_username"].(string); ok && v != "" {
		return v
	}
	return c.Subject
}

// Verifier validates a bearer token string and yields verified claims.
type Verifier interface {
	Verify(raw string) (*Claims, error)
}

// EdDSAVerifier validates Ed25519-signed JWTs against a fixed public key and
// an expected issuer.
type EdDSAVerifier struct {
	pub ed25519.PublicKey
	iss string
}

// NewEdDSAVerifier builds a verifier. iss may be empty to skip the issuer
// check (dev only).
func NewEdDSAVerifier(pub ed25519.PublicKey, iss string) *EdDSAVerifier {
	return &EdDSAVerifier{pub: pub, iss: iss}
}

// Verify checks signature, issuer, exp and nbf (30s leeway) and returns the
// claims. Any failure maps to ErrInvalidToken.
func (v *EdDSAVerifier) Verify(raw string) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		return v.pub, nil
	}

	tok, err := jwtv5.Parse(raw, keyfunc, jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if v.iss != "" {
		if iss, _ := mc["iss"].(string); iss != v.iss {
			return nil, ErrInvalidToken
		}
	}

	now := time.Now()
	var expiry time.Time
	if expf, ok := mc["exp"].(float64); ok {
		expiry = time.Unix(int64(expf), 0)
		if expiry.Before(now.Add(-30 * time.Second)) {
			return nil, ErrInvalidToken
		}
	}
	if nbff, ok := mc["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(30 * time.Second)) {
			return nil, ErrInvalidToken
		}
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	out := make(map[string]any, len(mc))
	for k, val := range mc {
		out[k] = val
	}
	return &Claims{Subject: sub, Expiry: expiry, Raw: out}, nil
}

// MintEdDSA issues an Ed25519-signed JWT. Used by the dev `token` command and
// by tests; the production token issuer is an external identity provider.
func MintEdDSA(priv ed25519.PrivateKey, iss, sub string, ttl time.Duration, extra map[string]any) (string, error) {
	now := time.Now()
	claims := jwtv5.MapClaims{
		"iss": iss,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	return tok.SignedString(priv)
}

// GenerateKeypair creates a fresh Ed25519 keypair for dev setups.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// ParsePublicKey decodes a base64 (std) raw Ed25519 public key.
func ParsePublicKey(b64 string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// ParsePrivateKey decodes a base64 (std) raw Ed25519 private key (seed or
// full form).
func ParsePrivateKey(b64 string) (ed25519.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}
