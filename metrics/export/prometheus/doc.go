// Package prometheus exposes irisauth metrics over HTTP.
//
// [NewRegistry] returns a registry preloaded with the Go runtime and process
// collectors; pass it to irisauth.Builder.WithMetrics so the Engine's
// irisauth_* collectors land next to them. [Handler] renders any gatherer in
// the Prometheus text exposition format.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
