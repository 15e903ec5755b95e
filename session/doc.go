// Package session persists the one refresh-token record each principal may hold
// and serializes rotation of that record.
//
// # Storage
//
// [PostgresStore] keeps one row per user in refresh_tokens, keyed by user_id and
// holding only the token fingerprint and expiry. Rotation locks the row with
// SELECT ... FOR UPDATE, so concurrent refreshes for the same user queue on the
// lock and every waiter re-reads the row the winner committed. [MemoryStore]
// gives the same guarantees in process with a per-user lock.
//
// # Architecture boundaries
//
// This package never sees raw tokens and never decides whether a rotation is
// allowed. The caller passes a [RotateFunc] that inspects the locked record and
// returns the replacement or an error that aborts the transaction.
package session
