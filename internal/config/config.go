package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrDefaultWritten is returned by Load when no config file existed and a
// default one was written in its place. The caller is expected to tell the
// operator to edit it and exit cleanly.
var ErrDefaultWritten = errors.New("config: default configuration written")

// Config is the full server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Messages     MessagesConfig     `yaml:"messages"`
	Upstream     UpstreamConfig     `yaml:"upstream"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Delay        DelayConfig        `yaml:"delay"`
	Logging      LoggingConfig      `yaml:"logging"`
	ProbeLogging ProbeLoggingConfig `yaml:"probe_logging"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
}

// ServerConfig configures the listening socket.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxConnections int           `yaml:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

// MessagesConfig holds the values embedded verbatim into outgoing packets.
type MessagesConfig struct {
	MOTD          string `yaml:"motd"`
	VersionName   string `yaml:"version_name"`
	KickMessage   string `yaml:"kick_message"`
	ServerIcon    string `yaml:"server_icon"` // path to a PNG, optional
	MaxPlayers    int    `yaml:"max_players"`
	OnlinePlayers int    `yaml:"online_players"`
}

// UpstreamConfig configures optional status mirroring from a real server.
type UpstreamConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Address       string        `yaml:"address"` // IP, hostname or SRV name
	SyncInterval  time.Duration `yaml:"sync_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryCount    int           `yaml:"retry_count"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// RateLimitConfig configures the per-IP and global limiters.
type RateLimitConfig struct {
	IPLimit         int           `yaml:"ip_limit"`
	GlobalLimit     int           `yaml:"global_limit"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DelayConfig configures the tarpit delay applied before replies.
type DelayConfig struct {
	BaseDelay            time.Duration `yaml:"base_delay"`
	MaxIPPenalty         time.Duration `yaml:"max_ip_penalty"`
	MaxGlobalPenalty     time.Duration `yaml:"max_global_penalty"`
	IPFrequencyFactor    float64       `yaml:"ip_frequency_factor"`
	GlobalLoadFactor     float64       `yaml:"global_load_factor"`
	IPRateMultiplier     float64       `yaml:"ip_rate_multiplier"`
	GlobalRateMultiplier float64       `yaml:"global_rate_multiplier"`
}

// LoggingConfig configures the main zerolog output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json, console
	Output     string `yaml:"output"` // stdout, stderr, file
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// ProbeLoggingConfig configures the structured probe event log.
type ProbeLoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
	Format     string `yaml:"format"` // json, csv
}

// MonitoringConfig configures the optional metrics endpoint.
type MonitoringConfig struct {
	Enabled         bool   `yaml:"enabled"`
	MetricsPort     int    `yaml:"metrics_port"`
	HealthCheckPath string `yaml:"health_check_path"`
	MetricsPath     string `yaml:"metrics_path"`
}

const defaultConfigText = `server:
  host: 0.0.0.0
  port: 25565

messages:
  motd: |-
    §aFake Minecraft Server
    §7Welcome!
  version_name: FakeMinecraftServer
  kick_message: |-
    You cannot join this server.
    Please contact admin.
  server_icon: ""
  max_players: 10
  online_players: 0

# Mirror the status of a real server instead of the static values above.
upstream:
  enabled: false
  address: ""

logging:
  level: info
  format: console
  output: stdout

probe_logging:
  enabled: false
  file_path: logs/probes.log
  format: json

monitoring:
  enabled: false
  metrics_port: 9090
`

// Load reads the configuration from path. When the file does not exist a
// default one is written and ErrDefaultWritten is returned.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := os.WriteFile(configPath, []byte(defaultConfigText), 0644); werr != nil {
				return nil, fmt.Errorf("write default config: %w", werr)
			}
			return nil, ErrDefaultWritten
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	setDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &config, nil
}

func setDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 25565
	}
	if config.Server.MaxConnections == 0 {
		config.Server.MaxConnections = 10000
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 10 * time.Minute
	}

	if config.Messages.MOTD == "" {
		config.Messages.MOTD = "§aFake Minecraft Server\n§7Welcome!"
	}
	if config.Messages.VersionName == "" {
		config.Messages.VersionName = "FakeMinecraftServer"
	}
	if config.Messages.KickMessage == "" {
		config.Messages.KickMessage = "You cannot join this server.\nPlease contact admin."
	}
	if config.Messages.MaxPlayers == 0 {
		config.Messages.MaxPlayers = 10
	}

	if config.Upstream.SyncInterval == 0 {
		config.Upstream.SyncInterval = time.Minute
	}
	if config.Upstream.Timeout == 0 {
		config.Upstream.Timeout = 5 * time.Second
	}
	if config.Upstream.RetryInterval == 0 {
		config.Upstream.RetryInterval = 2 * time.Second
	}

	if config.RateLimit.IPLimit == 0 {
		config.RateLimit.IPLimit = 5
	}
	if config.RateLimit.GlobalLimit == 0 {
		config.RateLimit.GlobalLimit = 100
	}
	if config.RateLimit.CleanupInterval == 0 {
		config.RateLimit.CleanupInterval = time.Minute
	}

	if config.Delay.MaxIPPenalty == 0 {
		config.Delay.MaxIPPenalty = 5 * time.Second
	}
	if config.Delay.MaxGlobalPenalty == 0 {
		config.Delay.MaxGlobalPenalty = 2 * time.Second
	}
	if config.Delay.IPFrequencyFactor == 0 {
		config.Delay.IPFrequencyFactor = 1.5
	}
	if config.Delay.GlobalLoadFactor == 0 {
		config.Delay.GlobalLoadFactor = 1.2
	}
	if config.Delay.IPRateMultiplier == 0 {
		config.Delay.IPRateMultiplier = 2.0
	}
	if config.Delay.GlobalRateMultiplier == 0 {
		config.Delay.GlobalRateMultiplier = 1.5
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}

	if config.ProbeLogging.Format == "" {
		config.ProbeLogging.Format = "json"
	}

	if config.Monitoring.MetricsPort == 0 {
		config.Monitoring.MetricsPort = 9090
	}
	if config.Monitoring.HealthCheckPath == "" {
		config.Monitoring.HealthCheckPath = "/health"
	}
	if config.Monitoring.MetricsPath == "" {
		config.Monitoring.MetricsPath = "/metrics"
	}
}

func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Server.Port)
	}

	if config.Server.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be positive")
	}

	if config.RateLimit.IPLimit < 1 {
		return fmt.Errorf("ip_limit must be positive")
	}

	if config.RateLimit.GlobalLimit < 1 {
		return fmt.Errorf("global_limit must be positive")
	}

	if config.Delay.IPFrequencyFactor <= 0 {
		return fmt.Errorf("ip_frequency_factor must be positive")
	}

	if config.Delay.GlobalLoadFactor <= 0 {
		return fmt.Errorf("global_load_factor must be positive")
	}

	if config.Messages.MaxPlayers < 0 || config.Messages.OnlinePlayers < 0 {
		return fmt.Errorf("player counts must not be negative")
	}

	if config.Upstream.Enabled && config.Upstream.Address == "" {
		return fmt.Errorf("upstream.address required when upstream is enabled")
	}

	return nil
}

// GetAddress returns the listen address.
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetMetricsAddress returns the metrics listen address.
func (c *Config) GetMetricsAddress() string {
	return fmt.Sprintf(":%d", c.Monitoring.MetricsPort)
}
