// Package jwt mints and verifies the two signed credential kinds used by irisauth:
// short-lived access tokens and long-lived refresh tokens.
//
// Each kind is signed with its own HS256 secret, so a leaked access secret
// cannot forge refresh tokens and vice versa. The kind is also carried in the
// token_type claim and checked on verification.
//
// Verification never tells the caller why a token was rejected. Every failure
// (bad signature, wrong kind, expired, malformed) is reported as [ErrInvalidToken];
// [IsExpired] exists for internal logging only.
package jwt
