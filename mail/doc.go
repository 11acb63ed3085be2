// Package mail composes lifecycle mails (activation, password reset) and
// defines the delivery boundary.
//
// # Architecture boundaries
//
// The engine decides WHEN to send and WHAT token to embed; this package
// turns that into a message; the caller-supplied [Deliverer] owns actual
// transport. No SMTP or queue client lives in this module.
package mail
