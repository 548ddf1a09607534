// Package tags mutates customer records on the storefront platform after a
// successful email verification.
//
// # Architecture boundaries
//
// The engine depends only on [Mutator] and calls it exactly once per
// successful verification. A mutation failure never rolls back code
// consumption; the engine audits the failure and moves on.
//
// # What this package must NOT do
//
//   - Decide whether a verification succeeded.
//   - Queue or retry mutations; a failed tag is resolved out of band.
package tags
