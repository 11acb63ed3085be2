// Package goIdentity provides a credential and session lifecycle engine:
// registration with encrypted activation challenges, argon2id password
// checks with soft lockout, JWT session issuance and store-backed
// revocation, TOTP multi-factor login with single-use recovery codes, and
// Redis-backed sliding-window rate limiting across every flow.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder],
// [Config] and value types (LoginResult, SessionInfo, MetricsSnapshot,
// etc.). All internal coordination — stores, rate limiting, audit
// dispatch, metric counters — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or record encodings in its
//     public API.
//   - Deliver email: composition lives in mail/, delivery is the injected
//     [mail.Deliverer].
//   - Trust a token without consulting the revocation state: VerifySession
//     always reads the marker, watermark and ban flag after the local
//     signature check.
//
// # Performance contract
//
// VerifySession is the hot path: signature and expiry fail locally without
// store I/O, and the surviving tokens cost one pipelined Redis round trip
// plus one ban-flag read. Login and the account operations are allowed a
// handful of round trips each.
package goIdentity
