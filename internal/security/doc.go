// Package security derives a point-in-time security posture report from
// engine configuration, consumed by the root SecurityReport API and the
// admin CLI.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Read or mutate any store.
package security
