package protocol

import "io"

// maxVarIntBytes caps a VarInt at 5 encoded bytes (32 usable bits).
const maxVarIntBytes = 5

// ReadVarInt decodes a variable-length integer: 7 data bits per byte, high
// bit set meaning more bytes follow. Data bits beyond 32 are discarded.
//
// io.EOF before the first byte means the stream closed between packets;
// io.ErrUnexpectedEOF means the stream closed mid-value. A VarInt that does
// not terminate within five bytes fails with ErrVarIntTooLong.
func ReadVarInt(r io.ByteReader) (uint32, error) {
	var value uint32
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && i > 0 {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		value |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return value, nil
		}
	}
	return 0, ErrVarIntTooLong
}

// AppendVarInt appends the VarInt encoding of value to dst and returns the
// extended slice. Zero encodes as a single 0x00 byte.
func AppendVarInt(dst []byte, value uint32) []byte {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if value == 0 {
			return dst
		}
	}
}
