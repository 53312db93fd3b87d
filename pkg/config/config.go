package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
	"gopkg.in/yaml.v3"
)

// Transport kinds
const (
	TransportRFCOMM = "rfcomm"
	TransportBLE    = "ble"
)

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"`

	Transport        string        `yaml:"transport" default:"rfcomm"`
	Adapter          string        `yaml:"adapter" default:"hci0"`
	RFCOMMChannel    int           `yaml:"rfcomm_channel" default:"1"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" default:"15s"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" default:"12s"`

	// Settle intervals are empirically tuned for HC-0x firmware.
	PostCommandSettle  time.Duration `yaml:"post_command_settle" default:"120ms"`
	PostTeardownSettle time.Duration `yaml:"post_teardown_settle" default:"200ms"`
	PreConnectSettle   time.Duration `yaml:"pre_connect_settle" default:"800ms"`
	CommandRepeat      int           `yaml:"command_repeat" default:"3"`
	OnPayload          string        `yaml:"on_payload" default:"ON\r\n"`
	OffPayload         string        `yaml:"off_payload" default:"OFF\r\n"`

	SocketPath string `yaml:"socket_path"`

	BluetoothSettingsCommand string `yaml:"bluetooth_settings_command" default:"blueman-manager"`
	LocationSettingsCommand  string `yaml:"location_settings_command" default:"gnome-control-center location"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.SocketPath = DefaultSocketPath()
	return cfg
}

// DefaultSocketPath places the control socket in the user runtime dir.
func DefaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "relayctl.sock")
}

// Load reads a YAML file on top of the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("invalid output format '%s': must be one of [table json]", c.OutputFormat)
	}
	switch c.Transport {
	case TransportRFCOMM, TransportBLE:
	default:
		return fmt.Errorf("invalid transport '%s': must be one of [%s %s]", c.Transport, TransportRFCOMM, TransportBLE)
	}
	if c.RFCOMMChannel < 1 || c.RFCOMMChannel > 30 {
		return fmt.Errorf("rfcomm channel %d out of range 1-30", c.RFCOMMChannel)
	}
	if c.CommandRepeat < 1 {
		return fmt.Errorf("command repeat must be at least 1, got %d", c.CommandRepeat)
	}
	if c.OnPayload == "" || c.OffPayload == "" {
		return fmt.Errorf("command payloads must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"post_command_settle":  c.PostCommandSettle,
		"post_teardown_settle": c.PostTeardownSettle,
		"pre_connect_settle":   c.PreConnectSettle,
		"connect_timeout":      c.ConnectTimeout,
		"discovery_timeout":    c.DiscoveryTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// Payloads returns the command payloads as bytes
func (c *Config) Payloads() peripheral.Payloads {
	return peripheral.Payloads{On: []byte(c.OnPayload), Off: []byte(c.OffPayload)}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.PanicLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
