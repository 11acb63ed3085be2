// Package middleware exposes an HTTP adapter for session enforcement
// built on top of goIdentity.Engine verification.
//
// [RequireSession] reads the Authorization header, calls
// Engine.VerifySession, and injects the verified claims into the request
// context for [ClaimsFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — every decision is delegated to
// Engine.VerifySession.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from VerifySession.
package middleware
