// Package audit defines the audit event model and sink implementations used
// by the engine's async dispatcher.
//
// # Components
//
//   - [Event] — structured audit record with timestamp, type, username,
//     audience, token ID, IP and lazy metadata.
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//
// # Architecture boundaries
//
// This package owns the event shape and sink delivery. It does NOT decide
// which events to emit — that responsibility belongs to the engine flows.
// The buffering dispatcher lives in the root package so it can carry engine
// configuration without an import cycle.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goIdentity or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
