package protocol

import (
	"bytes"
	"testing"
)

func handshakePayload(protocolVersion uint32, address string, port uint16, nextState uint32) []byte {
	payload := AppendVarInt(nil, protocolVersion)
	payload = AppendString(payload, address)
	payload = append(payload, byte(port>>8), byte(port))
	return AppendVarInt(payload, nextState)
}

func TestReadHandshake(t *testing.T) {
	payload := handshakePayload(758, "play.example.com", 25565, 1)
	payload = AppendString(payload, "Steve")

	hs, err := ReadHandshake(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ReadHandshake failed: %v", err)
	}

	if hs.ProtocolVersion != 758 {
		t.Errorf("protocol version = %d, want 758", hs.ProtocolVersion)
	}
	if hs.ServerAddress != "play.example.com" {
		t.Errorf("server address = %q", hs.ServerAddress)
	}
	if hs.ServerPort != 25565 {
		t.Errorf("server port = %d, want 25565", hs.ServerPort)
	}
	if hs.NextState != IntentStatus {
		t.Errorf("next state = %d, want %d", hs.NextState, IntentStatus)
	}
	if hs.Username != "Steve" {
		t.Errorf("username = %q, want Steve", hs.Username)
	}
}

func TestReadHandshakeUsernameOptional(t *testing.T) {
	tests := []struct {
		name    string
		trailer []byte
	}{
		{"absent", nil},
		{"truncated", []byte{0x05, 'a', 'b'}},
		{"invalid utf8", []byte{0x02, 0xFF, 0xFE}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := handshakePayload(47, "mc.example.com", 25566, 2)
			payload = append(payload, tt.trailer...)

			hs, err := ReadHandshake(bytes.NewReader(payload))
			if err != nil {
				t.Fatalf("username failure must not abort the handshake: %v", err)
			}
			if hs.Username != "" {
				t.Errorf("username = %q, want empty", hs.Username)
			}
			if hs.DisplayName("203.0.113.7") != "203.0.113.7" {
				t.Errorf("DisplayName fallback not applied")
			}
		})
	}
}

func TestReadHandshakeMalformed(t *testing.T) {
	// Address length declares more bytes than follow.
	payload := AppendVarInt(nil, 758)
	payload = append(payload, AppendVarInt(nil, 50)...)
	payload = append(payload, 'x')

	if _, err := ReadHandshake(bytes.NewReader(payload)); err == nil {
		t.Error("expected error for truncated address field")
	}
}
