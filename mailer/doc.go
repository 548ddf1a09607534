// Package mailer delivers verification passcodes to shoppers by email.
//
// # Architecture boundaries
//
// The engine depends only on [Sender]. Delivery is best-effort from the
// engine's point of view: a stored code survives a failed send and the
// shopper recovers it with an idempotent resend.
//
// # What this package must NOT do
//
//   - Generate, store, or validate codes (the engine owns the lifecycle).
//   - Retry sends on its own; retry policy belongs to the caller.
package mailer
