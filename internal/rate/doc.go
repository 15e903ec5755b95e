// Package rate implements the fixed-window request counters that gate login,
// refresh and predict calls.
//
// # Window semantics
//
// Each (scope, identity) pair owns one Redis key, rate:<scope>:<identity>.
// The first call in a window sets the key to 1 with a TTL equal to the window.
// Later calls are rejected once the stored count reaches the limit and
// increment it otherwise. Bursts straddling a window boundary can reach twice
// the nominal rate. Two first hits racing on an absent key may both write 1,
// allowing at most one extra call per window.
//
// # Failure policy
//
// The counters are auxiliary. When Redis errors or times out the limiter logs
// at critical severity and allows the call.
package rate
