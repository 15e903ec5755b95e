// Package flows contains the state transitions behind Engine.Login,
// Engine.Refresh and Engine.Logout.
//
// Each flow function accepts a typed dependency struct and returns a result
// carrying a failure kind instead of a public error. The Engine maps kinds to
// its own sentinels, metrics and log lines, so the flows stay free of
// presentation concerns and can be tested with plain function fakes.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import irisauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
