// Package stores provides the Redis-backed persistence layer for the
// identity engine: user credential hashes, challenge liveness entries, and
// pending multi-factor login tickets.
//
// # Design
//
// The user record is a Redis hash keyed by username, with per-audience
// metadata hashes and a recovery-code digest set alongside it. Multi-step
// mutations that must be indivisible (existence check + create, check +
// flip for activation and bans, increment + lock for login failures,
// get + compare + delete for challenge consumption) run as Lua scripts so
// no concurrent caller can interleave. MFA ticket attempt accounting uses
// WATCH/MULTI optimistic transactions with bounded retry. Secret
// comparisons use constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control. It does NOT hash
// passwords, mint tokens, enforce rate limits, or make authentication
// decisions — those belong to the engine flows.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Log or expose plaintext secrets.
//   - Use non-constant-time comparisons for secret matching.
package stores
