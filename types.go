package storegate

import "fmt"

// DeviceDecision defines a public type used by storegate APIs.
//
// DeviceDecision instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DeviceDecision struct {
	// Allowed reports whether the (account, device) pair may proceed.
	Allowed bool
	// Known reports whether the device was already bound to the account
	// before this check ran.
	Known bool
	// Limit is the account's device limit at decision time.
	Limit int
	// Message is the user-facing denial text. Empty when Allowed.
	Message string
}

func denialMessage(custom string, limit int) string {
	if custom != "" {
		return custom
	}
	return fmt.Sprintf("device limit of %d reached for this account", limit)
}
