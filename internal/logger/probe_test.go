package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

func TestProbeLoggerDisabled(t *testing.T) {
	pl, err := NewProbeLogger(&config.ProbeLoggingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewProbeLogger failed: %v", err)
	}

	if pl.IsEnabled() {
		t.Error("disabled logger reports enabled")
	}
	if err := pl.LogHandshake("192.0.2.1", 758, "play.example.com", 25565, 1, "Steve", 0); err != nil {
		t.Errorf("no-op logger returned error: %v", err)
	}
	if err := pl.Close(); err != nil {
		t.Errorf("no-op Close returned error: %v", err)
	}
}

func TestProbeLoggerJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.log")
	pl, err := NewProbeLogger(&config.ProbeLoggingConfig{
		Enabled:  true,
		FilePath: path,
		Format:   "json",
	})
	if err != nil {
		t.Fatalf("NewProbeLogger failed: %v", err)
	}

	if err := pl.LogHandshake("192.0.2.1", 758, "play.example.com", 25565, 2, "Steve", 1.5); err != nil {
		t.Fatalf("LogHandshake failed: %v", err)
	}
	if err := pl.LogLoginAttempt("192.0.2.1", "Steve", 120); err != nil {
		t.Fatalf("LogLoginAttempt failed: %v", err)
	}
	if err := pl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read probe log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}

	var first ProbeEvent
	if err := sonic.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.EventType != "handshake" {
		t.Errorf("event_type = %q, want handshake", first.EventType)
	}
	if first.ClientIP != "192.0.2.1" || first.Username != "Steve" {
		t.Errorf("event = %+v", first)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	var second ProbeEvent
	if err := sonic.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if second.EventType != "login_attempt" || second.DelayApplied != 120 {
		t.Errorf("event = %+v", second)
	}
}

func TestProbeLoggerCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.csv")
	pl, err := NewProbeLogger(&config.ProbeLoggingConfig{
		Enabled:  true,
		FilePath: path,
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("NewProbeLogger failed: %v", err)
	}

	if err := pl.LogProtocolViolation("192.0.2.1", "varint too long"); err != nil {
		t.Fatalf("LogProtocolViolation failed: %v", err)
	}
	if err := pl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read probe log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus one record", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,client_ip,event_type") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "protocol_violation") || !strings.Contains(lines[1], "varint too long") {
		t.Errorf("record = %q", lines[1])
	}
}

func TestProbeLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "probes.log")
	pl, err := NewProbeLogger(&config.ProbeLoggingConfig{
		Enabled:  true,
		FilePath: path,
		Format:   "json",
	})
	if err != nil {
		t.Fatalf("NewProbeLogger failed: %v", err)
	}
	defer pl.Close()

	if err := pl.LogEvent(&ProbeEvent{ClientIP: "192.0.2.1", EventType: "handshake", Timestamp: time.Now()}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
