package protocol

import "errors"

// Protocol errors are always local to one session: the session logs the
// cause, closes the connection and the listener keeps running.
var (
	// ErrVarIntTooLong is returned when a VarInt does not terminate within
	// five bytes, i.e. the value would exceed 32 usable bits.
	ErrVarIntTooLong = errors.New("protocol: VarInt too long")

	// ErrTruncated is returned when fewer bytes are available than a
	// length prefix declared.
	ErrTruncated = errors.New("protocol: truncated field")

	// ErrInvalidUTF8 is returned when a string field does not decode as
	// UTF-8.
	ErrInvalidUTF8 = errors.New("protocol: invalid UTF-8 in string field")

	// ErrUnexpectedPacketID is returned when the first packet of a
	// connection is not a handshake.
	ErrUnexpectedPacketID = errors.New("protocol: unexpected packet id")

	// ErrFrameTooLarge is returned when a declared frame or string length
	// exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("protocol: declared frame too large")
)
