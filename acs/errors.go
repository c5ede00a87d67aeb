package acs

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	// ErrNotAuthenticated is returned when a command is issued before login.
	ErrNotAuthenticated = errors.New("acs: not authenticated")

	// ErrTimeout is returned when a call receives no response within its
	// deadline. The session remains usable; the next call drains any late
	// response that arrives afterward.
	ErrTimeout = errors.New("acs: timeout waiting for panel response")

	// ErrConnectionLost is returned to every pending caller when the packet
	// reader terminates (EOF, framing error, checksum error).
	ErrConnectionLost = errors.New("acs: connection lost")

	// ErrAlreadyConnected guards against calling Connect twice on the same
	// Session.
	ErrAlreadyConnected = errors.New("acs: session already connected")

	// ErrClosed is returned by calls issued after Disconnect.
	ErrClosed = errors.New("acs: session closed")
)

// FramingError reports a malformed frame prolog or an out-of-range length.
// It is fatal for the underlying socket; the Session transitions to Lost.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string { return "acs: framing error: " + e.Reason }

// ChecksumError reports a checksum mismatch on a decoded frame. Fatal for
// the stream, same as FramingError.
type ChecksumError struct {
	Want, Got uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("acs: checksum mismatch: want 0x%x got 0x%x", e.Want, e.Got)
}

// TruncationError reports a TLV record whose declared length runs past the
// end of the payload. Non-fatal: the frame is dropped but the session, and
// the socket, stay up.
type TruncationError struct {
	Type   uint16
	Length int
	Have   int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("acs: truncated TLV record type=0x%04x declared_len=%d have=%d", e.Type, e.Length, e.Have)
}

// ConnectFailedError wraps a dial failure or dial timeout.
type ConnectFailedError struct {
	Err error
}

func (e *ConnectFailedError) Error() string { return "acs: connect failed: " + e.Err.Error() }
func (e *ConnectFailedError) Unwrap() error { return e.Err }

// PanelError reports a NACK received in response to a COMMAND. Callers
// branch on Code; this core does not attach meaning to codes beyond the
// handful of named constants used for logging.
type PanelError struct {
	Code uint16
}

func (e *PanelError) Error() string {
	return fmt.Sprintf("acs: panel error 0x%04x", e.Code)
}

// AuthenticationFailed is returned by Login, in place of a PanelError, when
// login is NACKed with an auth-specific code (invalid user / no access
// rights).
type AuthenticationFailed struct {
	Code uint16
}

func (e *AuthenticationFailed) Error() string {
	return fmt.Sprintf("acs: authentication failed, code=0x%04x", e.Code)
}

func isAuthError(code uint16) bool {
	return code == ErrCodeInvalidUser || code == ErrCodeNoAccessRights
}
