// Package httpapi exposes the storegate engine over HTTP for the upstream
// storefront gateway.
//
// # Endpoints
//
//   - POST /device/check — device-limit gate decision for a login attempt.
//   - POST /otp/request — issue (or idempotently resend) a verification code.
//   - POST /otp/verify — consume a code and tag the customer as verified.
//   - PUT /settings/device-limit — settings surface for a per-account limit.
//   - PUT /settings/deny-message — settings surface for the denial text.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement gate or lifecycle logic itself — every decision is delegated to
// the Engine, and every business outcome maps onto a status code here:
// allowed 200, denied 403, bad input 400, throttled 429, storage failure 500.
//
// # What this package must NOT do
//
//   - Authenticate callers (identifiers are trusted gateway inputs).
//   - Access Redis (the Engine handles I/O).
//   - Rewrite or suppress the distinct verify failure messages; clients use
//     them to decide whether to offer a resend.
package httpapi
