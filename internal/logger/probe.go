package logger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// ProbeEvent is one structured record of a client probing the decoy.
type ProbeEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	ClientIP        string    `json:"client_ip"`
	EventType       string    `json:"event_type"` // "handshake", "login_attempt", "protocol_violation"
	ProtocolVersion int       `json:"protocol_version,omitempty"`
	ServerAddress   string    `json:"server_address,omitempty"`
	ServerPort      uint16    `json:"server_port,omitempty"`
	NextState       int       `json:"next_state,omitempty"` // 1=status, 2=login
	Username        string    `json:"username,omitempty"`
	DelayApplied    int64     `json:"delay_applied_ms,omitempty"`
	IPFrequency     float64   `json:"ip_frequency,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// ProbeLogger writes probe events to a rotated file as JSON lines or CSV.
type ProbeLogger struct {
	config    *config.ProbeLoggingConfig
	writer    io.Writer
	csvWriter *csv.Writer
	mutex     sync.Mutex
	enabled   bool
}

// NewProbeLogger creates the probe logger. A disabled config yields a no-op
// logger.
func NewProbeLogger(cfg *config.ProbeLoggingConfig) (*ProbeLogger, error) {
	if !cfg.Enabled {
		return &ProbeLogger{enabled: false}, nil
	}

	logDir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create probe log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	logger := &ProbeLogger{
		config:  cfg,
		writer:  fileWriter,
		enabled: true,
	}

	if strings.ToLower(cfg.Format) == "csv" {
		logger.csvWriter = csv.NewWriter(fileWriter)
		if err := logger.writeCSVHeader(); err != nil {
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
	}

	return logger, nil
}

func (pl *ProbeLogger) writeCSVHeader() error {
	headers := []string{
		"timestamp", "client_ip", "event_type",
		"protocol_version", "server_address", "server_port", "next_state",
		"username", "delay_applied_ms", "ip_frequency", "error_message",
	}
	if err := pl.csvWriter.Write(headers); err != nil {
		return err
	}
	pl.csvWriter.Flush()
	return pl.csvWriter.Error()
}

// LogEvent records one probe event.
func (pl *ProbeLogger) LogEvent(event *ProbeEvent) error {
	if !pl.enabled {
		return nil
	}

	pl.mutex.Lock()
	defer pl.mutex.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	switch strings.ToLower(pl.config.Format) {
	case "csv":
		return pl.writeCSV(event)
	default: // json
		return pl.writeJSON(event)
	}
}

func (pl *ProbeLogger) writeJSON(event *ProbeEvent) error {
	data, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize probe event: %w", err)
	}

	_, err = pl.writer.Write(append(data, '\n'))
	return err
}

func (pl *ProbeLogger) writeCSV(event *ProbeEvent) error {
	record := []string{
		event.Timestamp.Format(time.RFC3339),
		event.ClientIP,
		event.EventType,
		fmt.Sprintf("%d", event.ProtocolVersion),
		event.ServerAddress,
		fmt.Sprintf("%d", event.ServerPort),
		fmt.Sprintf("%d", event.NextState),
		event.Username,
		fmt.Sprintf("%d", event.DelayApplied),
		fmt.Sprintf("%.2f", event.IPFrequency),
		event.ErrorMessage,
	}

	if err := pl.csvWriter.Write(record); err != nil {
		return err
	}

	pl.csvWriter.Flush()
	return pl.csvWriter.Error()
}

// LogHandshake records a decoded handshake.
func (pl *ProbeLogger) LogHandshake(clientIP string, protocolVer int, serverAddr string, serverPort uint16, nextState int, username string, ipFreq float64) error {
	return pl.LogEvent(&ProbeEvent{
		ClientIP:        clientIP,
		EventType:       "handshake",
		ProtocolVersion: protocolVer,
		ServerAddress:   serverAddr,
		ServerPort:      serverPort,
		NextState:       nextState,
		Username:        username,
		IPFrequency:     ipFreq,
	})
}

// LogLoginAttempt records a rejected login.
func (pl *ProbeLogger) LogLoginAttempt(clientIP, username string, delayMs int64) error {
	return pl.LogEvent(&ProbeEvent{
		ClientIP:     clientIP,
		EventType:    "login_attempt",
		Username:     username,
		DelayApplied: delayMs,
	})
}

// LogProtocolViolation records a malformed or unexpected inbound packet.
func (pl *ProbeLogger) LogProtocolViolation(clientIP, errorMsg string) error {
	return pl.LogEvent(&ProbeEvent{
		ClientIP:     clientIP,
		EventType:    "protocol_violation",
		ErrorMessage: errorMsg,
	})
}

// Close flushes and closes the underlying writer.
func (pl *ProbeLogger) Close() error {
	if !pl.enabled {
		return nil
	}

	pl.mutex.Lock()
	defer pl.mutex.Unlock()

	if pl.csvWriter != nil {
		pl.csvWriter.Flush()
	}

	if closer, ok := pl.writer.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// IsEnabled reports whether events are being recorded.
func (pl *ProbeLogger) IsEnabled() bool {
	return pl.enabled
}
