package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrDuplicateChannel indicates a sender for the same kind is already
	// registered on the router.
	ErrDuplicateChannel = errors.New("channel: duplicate channel kind")

	// ErrDenied indicates the responder was blocked by the allow-list.
	ErrDenied = errors.New("channel: responder not allowed")
)
