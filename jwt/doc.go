// Package jwt manages session-token issuance and local verification using
// configured signing keys and strict validation semantics suitable for
// low-latency verification paths.
package jwt
