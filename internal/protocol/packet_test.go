package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestWritePacketFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, 0x00, []byte("hi")); err != nil {
		t.Fatalf("WritePacket failed: %v", err)
	}

	// VarInt(3) ++ VarInt(0) ++ "hi"
	want := []byte{0x03, 0x00, 'h', 'i'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("frame = %#v, want %#v", buf.Bytes(), want)
	}
}

func TestWritePacketReadHeaderRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	var buf bytes.Buffer
	if err := WritePacket(&buf, 0x01, payload); err != nil {
		t.Fatalf("WritePacket failed: %v", err)
	}

	length, packetID, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if packetID != 0x01 {
		t.Errorf("packet id = %d, want 1", packetID)
	}
	// Declared length covers the ID byte plus the payload.
	if length != uint32(1+len(payload)) {
		t.Errorf("declared length = %d, want %d", length, 1+len(payload))
	}
}

func TestReadFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, 0x00, []byte("hi")); err != nil {
		t.Fatalf("WritePacket failed: %v", err)
	}
	// A second frame right behind the first must stay untouched.
	trailer := []byte{0x01, 0x00}
	buf.Write(trailer)

	r := bytes.NewReader(buf.Bytes())
	packetID, payload, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if packetID != 0x00 {
		t.Errorf("packet id = %d, want 0", packetID)
	}
	if !bytes.Equal(payload, []byte("hi")) {
		t.Errorf("payload = %#v, want %#v", payload, []byte("hi"))
	}
	if r.Len() != len(trailer) {
		t.Errorf("%d bytes left in stream, want %d", r.Len(), len(trailer))
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	// Declares 10 bytes, provides 2.
	input := AppendVarInt(nil, 10)
	input = append(input, 0x00, 0x01)

	_, _, err := ReadFrame(bytes.NewReader(input))
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestReadHeaderOversizedFrame(t *testing.T) {
	input := AppendVarInt(nil, MaxFrameSize+1)

	_, _, err := ReadHeader(bytes.NewReader(input))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}
