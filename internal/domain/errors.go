package domain

import "errors"

// Sentinel errors for the messaging core. Handlers map these onto the wire:
// the socket surfaces them as an `error` event to the originating connection
// only, the REST fallback maps them to status codes.
var (
	// ErrAuthenticationFailed refuses a connection whose credential is
	// missing, malformed, or rejected by the identity service. There is no
	// anonymous downgrade.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrChannelNotFound is distinct from ErrAccessDenied: callers must be
	// able to tell "no such channel" apart from "channel exists, no access".
	ErrChannelNotFound = errors.New("channel not found")

	// ErrAccessDenied covers every authorization rejection: writing to a
	// private channel without membership, editing someone else's message,
	// deleting without sufficient role.
	ErrAccessDenied = errors.New("access denied")

	// ErrMessageNotFound is returned for lifecycle operations on a message
	// ID that does not exist.
	ErrMessageNotFound = errors.New("message not found")
)
