package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ryusei-star/FakeMinecraftServer/internal/pool"
)

// MaxFrameSize bounds the declared length of inbound frames and string
// fields. Nothing in the handshake phase comes close to it; anything larger
// is adversarial.
const MaxFrameSize = 1 << 16

var framePool = pool.NewFramePool()

// WritePacket frames packetID and payload as
// VarInt(len) ++ VarInt(packetID) ++ payload and writes the whole frame to w
// in a single write.
func WritePacket(w io.Writer, packetID uint32, payload []byte) error {
	var idBuf [maxVarIntBytes]byte
	idEnc := AppendVarInt(idBuf[:0], packetID)

	frame := framePool.Get()
	frame = AppendVarInt(frame, uint32(len(idEnc)+len(payload)))
	frame = append(frame, idEnc...)
	frame = append(frame, payload...)

	_, err := w.Write(frame)
	framePool.Put(frame)
	return err
}

// ReadHeader reads the outer frame length and the packet ID. The declared
// length is bounded by MaxFrameSize but is otherwise not cross-checked
// against the bytes the field decoders consume afterwards.
func ReadHeader(r Reader) (length, packetID uint32, err error) {
	length, err = ReadVarInt(r)
	if err != nil {
		return 0, 0, err
	}
	if length > MaxFrameSize {
		return 0, 0, ErrFrameTooLarge
	}
	packetID, err = ReadVarInt(r)
	if err != nil {
		return 0, 0, err
	}
	return length, packetID, nil
}

// ReadFrame consumes exactly one frame from the stream: the declared length,
// then that many bytes. It returns the packet ID and the payload bytes after
// it. Field decoders working on the payload can never read past the frame
// boundary, which keeps optional trailing fields from swallowing the next
// packet.
func ReadFrame(r Reader) (packetID uint32, payload []byte, err error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return 0, nil, err
	}
	if length > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return 0, nil, fmt.Errorf("frame body of %d bytes: %w", length, ErrTruncated)
	}

	fr := bytes.NewReader(frame)
	packetID, err = ReadVarInt(fr)
	if err != nil {
		return 0, nil, err
	}
	return packetID, frame[len(frame)-fr.Len():], nil
}
