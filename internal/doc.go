// Package internal holds helpers shared by the storegate engine that must not
// become part of the public API, currently passcode generation.
package internal
