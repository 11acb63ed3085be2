// Package rate implements the distributed sliding-window rate limiter that
// backs every throttled operation in goIdentity.
//
// # Design
//
// Each (operation, subject) pair maps to one Redis sorted set. An attempt
// inserts a uuid member scored with the current millisecond timestamp,
// refreshes the window TTL, prunes members older than the window, and reads
// the surviving cardinality — all inside one MULTI/EXEC batch. Rejected
// attempts keep their marker: the check itself counts, so attackers cannot
// probe the limiter for free.
//
// # Architecture boundaries
//
// This package owns the window keys (irl:*) and nothing else. Per-flow
// thresholds and windows live in the root package configuration; callers
// compare the returned count themselves or use Check.
//
// # What this package must NOT do
//
//   - Retry store failures (retry policy belongs to the caller).
//   - Map ErrRedisUnavailable to a domain rejection.
package rate
