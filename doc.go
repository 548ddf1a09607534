// Package storegate provides a storefront login gate: a per-account device
// registration limit and a one-time-passcode email verification flow, both
// backed by Redis.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The service layer above it is stateless per request; all
// shared state lives in Redis, which serializes conflicting writes.
//
// # Architecture boundaries
//
// storegate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (DeviceDecision, MetricsSnapshot, AuditEvent). Redis key
// layout, record encodings, and throttle bookkeeping are implementation
// details and never leak through the public API.
//
// Collaborators are interface-first and live in sub-packages: outbound email
// delivery in [github.com/kaelgrist/storegate/mailer] and storefront customer
// tag mutation in [github.com/kaelgrist/storegate/tags]. The HTTP adapter in
// [github.com/kaelgrist/storegate/httpapi] translates request bodies and
// status codes into Engine calls and makes no decisions of its own.
//
// # What this package must NOT do
//
//   - Authenticate callers. Account and device identifiers are trusted inputs
//     from an upstream gateway.
//   - Depend on email delivery succeeding. A stored code survives a failed
//     send and is recovered by an idempotent resend.
//   - Read configuration from the environment inside business logic. All
//     configuration is injected at construction.
//
// # Consistency contract
//
// CheckDevice's check-then-bind sequence is deliberately not atomic: two
// concurrent calls for the same account with two different new devices can
// transiently overshoot the limit by at most the number of concurrent racers
// minus one. Bindings happen at login time only, so availability wins over
// strict fleet-size enforcement. VerifyCode is strict: consumption runs as a
// conditional read-check-delete, so two concurrent verifies with the correct
// code can never both succeed.
package storegate
