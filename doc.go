// Package irisauth issues and rotates the sessions of password-authenticated
// principals: short-lived JWT access tokens, long-lived refresh tokens bound to
// one durable record per principal, and fixed-window rate limits in front of
// the login, refresh and inference routes.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// irisauth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types such as [Tokens] and [Principal]. Flow orchestration and rate
// limiting live under internal/. Token signing lives in jwt, password hashing
// in password and durable session records in session.
//
// # Session invariants
//
//   - A principal has at most one session. Login replaces it.
//   - A refresh token is valid only while its fingerprint matches the stored
//     record. Rotation happens under a row lock, so concurrent refreshes with
//     one token produce exactly one new pair.
//   - Every authentication failure belongs to the [IsUnauthorized] group and
//     must be presented to clients identically.
//
// # Failure policy
//
// The rate limiter fails open: a Redis outage logs a critical entry and lets
// the request through. The session store fails closed with
// [ErrStoreUnavailable].
package irisauth
