package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// FingerprintLength is the length of a hex fingerprint.
const FingerprintLength = sha256.Size * 2

// Fingerprint returns the hex SHA-256 of token. The raw token is never stored.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyFingerprint reports whether token hashes to stored, in constant time.
func VerifyFingerprint(token, stored string) bool {
	if len(stored) != FingerprintLength {
		return false
	}
	computed := Fingerprint(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}
