// Package challenge seals single-use lifecycle tokens (account activation,
// password reset) into opaque URL-safe strings.
//
// # Design
//
// The payload — action, issue time, identifier, audience, and a random
// nonce — is binary-encoded and encrypted with AES-256-GCM under a fresh
// random GCM nonce per token. Confidentiality matters here, not just
// integrity: the token travels through email, and its contents (who it is
// for, what it unlocks) must be unreadable in transit and at rest in a
// mailbox.
//
// The embedded payload nonce keys a server-side liveness entry; consuming
// that entry is what makes a token single-use. The codec itself is
// stateless.
//
// # Architecture boundaries
//
// This package owns token sealing and opening only. TTL policy, liveness
// bookkeeping and action dispatch belong to the engine flows.
//
// # What this package must NOT do
//
//   - Reveal why a token failed to open. Callers get [ErrInvalidToken]
//     regardless of whether the encoding, the key, or the payload was wrong.
//   - Touch Redis or any other store.
package challenge
