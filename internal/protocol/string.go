package protocol

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// Reader is the byte source the field codecs decode from. *bufio.Reader and
// *bytes.Reader both satisfy it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// ReadString decodes a VarInt length prefix followed by exactly that many
// bytes of UTF-8 text.
func ReadString(r Reader) (string, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if length > MaxFrameSize {
		return "", ErrFrameTooLarge
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidUTF8
	}
	return string(buf), nil
}

// AppendString appends the VarInt byte length of s followed by its UTF-8
// bytes to dst.
func AppendString(dst []byte, s string) []byte {
	dst = AppendVarInt(dst, uint32(len(s)))
	return append(dst, s...)
}
