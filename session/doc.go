// Package session tracks session revocation in Redis.
//
// # Design
//
// Session tokens are self-contained; only their deaths are recorded. A
// logout writes a marker under the token's jti, a logout-all writes a
// per-subject watermark timestamp in Unix milliseconds. Verification
// reads both in one pipelined round trip and treats a token as revoked
// when its marker exists or its issue instant does not exceed the
// watermark. Every entry expires with the tokens it guards.
//
// # What this package must NOT do
//
//   - Parse or validate tokens — the jwt package owns that.
//   - Check ban state — the engine consults the user store separately.
package session
