package patgate

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// SecretPrefixLen is the number of leading characters of a raw secret
	// that are persisted alongside its hash and used as the indexed lookup
	// key. The remainder of the secret is only ever compared by hash.
	SecretPrefixLen = 12

	// secretEntropyBytes is the amount of random data in a generated
	// secret (192 bits).
	secretEntropyBytes = 24
)

// NewSecret generates a raw PAT secret of the form "<prefix>_<random>",
// where the random part carries secretEntropyBytes of entropy from
// crypto/rand. The raw secret is shown to the caller exactly once and is
// never persisted.
func NewSecret(prefix string) (string, error) {
	buf := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret returns the hex-encoded SHA-256 digest of a raw secret.
// Only this digest is stored.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretLookupPrefix returns the indexed lookup prefix of a raw secret.
func SecretLookupPrefix(secret string) string {
	if len(secret) < SecretPrefixLen {
		return secret
	}
	return secret[:SecretPrefixLen]
}

// SecretHashEqual compares two secret hashes in constant time.
func SecretHashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
