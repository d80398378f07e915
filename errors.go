package reliant

import "errors"

// Sentinel errors surfaced synchronously to callers (spec.md §7). Decode
// failures and exhausted retransmissions are never returned this way — they
// are silent by design.
var (
	// ErrNotOpen is returned by Send when State is CONNECTING or CLOSING.
	ErrNotOpen = errors.New("reliant: channel is not open")
	// ErrUnsupported is returned by Send for a value with no byte
	// representation (e.g. a foreign/blob object).
	ErrUnsupported = errors.New("reliant: unsupported value type")
	// ErrMessageTooLarge is returned by Send when a message would need more
	// than 128 fragments to transmit.
	ErrMessageTooLarge = errors.New("reliant: message exceeds maximum fragmentable size")
	// ErrClosed is returned by Send when the channel has already reached
	// CLOSED, distinguishing "finished" from the CONNECTING/CLOSING cases
	// ErrNotOpen covers.
	ErrClosed = errors.New("reliant: channel is closed")
)
