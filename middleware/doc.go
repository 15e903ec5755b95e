// Package middleware adapts irisauth.Engine to net/http.
//
// # Handlers
//
//   - [Guard] verifies the bearer access token and stores the Principal in the
//     request context.
//   - [RateLimit] spends one unit of a scope's budget before the handler runs.
//   - [RequireAPIKey] gates a route on a static api-key header.
//   - [ClientIP], [AccessLog] and [Recover] are process plumbing.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself. Every failure is rendered by
// [WriteError], so equivalent failures produce byte-identical responses.
package middleware
