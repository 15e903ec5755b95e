// Package internal groups the packages that are private to irisauth.
//
// # Sub-packages
//
//   - config: environment loading for cmd/irisauthd
//   - dbx: database/sql helpers shared by the Postgres repositories
//   - flows: pure-function orchestrators for login, refresh and logout
//   - httpapi: the route tree served by cmd/irisauthd
//   - rate: Redis-backed fixed-window rate limiting
//
// # What this package must NOT do
//
//   - Export types that appear in the public irisauth API.
//   - Be imported by any package outside the irisauth module.
package internal
