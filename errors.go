package storegate

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the storefront gate engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidRequest is an exported constant or variable used by the storefront gate engine.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStorageUnavailable is an exported constant or variable used by the storefront gate engine.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	// ErrInvalidLimit is an exported constant or variable used by the storefront gate engine.
	ErrInvalidLimit = errors.New("device limit must be a positive integer")
	// ErrCodeNotFound is an exported constant or variable used by the storefront gate engine.
	ErrCodeNotFound = errors.New("no verification code found")
	// ErrCodeExpired is an exported constant or variable used by the storefront gate engine.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrCodeInvalid is an exported constant or variable used by the storefront gate engine.
	ErrCodeInvalid = errors.New("verification code invalid")
	// ErrIssueRateLimited is an exported constant or variable used by the storefront gate engine.
	ErrIssueRateLimited = errors.New("code issuance rate limited")
)
