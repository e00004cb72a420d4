package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HandshakePacketID is the only packet ID accepted at the start of a
// connection.
const HandshakePacketID = 0x00

// Intent values carried in the handshake next_state field.
const (
	IntentStatus = 1
	IntentLogin  = 2
)

// HandshakeInfo is the decoded first packet of a connection. It lives only
// for the duration of one session.
type HandshakeInfo struct {
	ProtocolVersion int    // informational only, never branched on
	ServerAddress   string // unused by logic
	ServerPort      uint16 // unused by logic
	NextState       int
	Username        string // best effort, may be empty
}

// ReadHandshake decodes the handshake fields in wire order: protocol version
// (VarInt), server address (String), server port (big-endian uint16, fixed
// width), next state (VarInt). A trailing username is read best effort:
// short reads or bad encoding leave Username empty and do not fail the
// handshake.
func ReadHandshake(r Reader) (*HandshakeInfo, error) {
	version, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("protocol version: %w", err)
	}

	address, err := ReadString(r)
	if err != nil {
		return nil, fmt.Errorf("server address: %w", err)
	}

	var portBuf [2]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return nil, fmt.Errorf("server port: %w", ErrTruncated)
	}

	nextState, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("next state: %w", err)
	}

	info := &HandshakeInfo{
		ProtocolVersion: int(int32(version)),
		ServerAddress:   address,
		ServerPort:      binary.BigEndian.Uint16(portBuf[:]),
		NextState:       int(nextState),
	}

	if username, err := ReadString(r); err == nil {
		info.Username = username
	}

	return info, nil
}

// DisplayName returns the username, or fallback when none was decoded.
// Fallback is the peer address in practice.
func (h *HandshakeInfo) DisplayName(fallback string) string {
	if h.Username != "" {
		return h.Username
	}
	return fallback
}
