package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateOpaqueToken generates a random opaque token (base64url, no padding).
// Used for consent state tokens.
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL returns sha256(input) in unpadded base64url. State tokens
// are stored hashed; only the redirect URL ever carries the plaintext.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// EncodeKey encodes raw key bytes the way ParsePublicKey and ParsePrivateKey
// expect them back.
func EncodeKey(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
