// Package password implements password hashing with bcrypt and the fast
// fingerprint used to store refresh tokens.
//
// # Output format
//
// Password hashes are standard 60-byte bcrypt strings ($2a$<cost>$...). A
// stored hash produced with a lower cost than the configured one reports
// [Hasher.NeedsUpgrade] so the caller can re-hash on the next successful login.
//
// Refresh-token fingerprints are hex-encoded SHA-256 digests. A refresh token is
// a high-entropy signed value, so a slow KDF buys nothing there and would only
// put bcrypt on the refresh hot path.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other irisauth package.
//   - Log plaintext passwords or tokens.
package password
