// Package config loads qnflash settings from YAML with .env and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/capture"
)

// Config holds all qnflash configuration.
type Config struct {
	Serial  SerialConfig           `yaml:"serial" json:"serial"`
	Link    LinkConfig             `yaml:"link" json:"link"`
	Layout  bootloader.FlashLayout `yaml:"layout" json:"layout"`
	Logging LoggingConfig          `yaml:"logging" json:"logging"`
	Capture capture.Config         `yaml:"capture" json:"capture"`
	Monitor MonitorConfig          `yaml:"monitor" json:"monitor"`

	path string
}

type SerialConfig struct {
	PortPath string  `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate int     `yaml:"baud_rate" json:"baudRate"` // rate negotiated after sync
	ClockMHz float64 `yaml:"clock_mhz" json:"clockMHz"` // device main clock
}

type LinkConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshakeTimeout"` // 0 waits forever
	ReadTimeout      time.Duration `yaml:"read_timeout" json:"readTimeout"`
	ResultTimeout    time.Duration `yaml:"result_timeout" json:"resultTimeout"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" json:"format"` // "console" or "json"
	File       string `yaml:"file" json:"file"`     // empty disables file output
	MaxSizeMB  int    `yaml:"max_size_mb" json:"maxSizeMB"`
	MaxBackups int    `yaml:"max_backups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"maxAgeDays"`
}

type MonitorConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"` // empty disables the monitor
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			PortPath: "/dev/ttyUSB0",
			BaudRate: bootloader.DefaultBaudRate,
			ClockMHz: bootloader.DefaultClockHz / 1e6,
		},
		Link: LinkConfig{
			HandshakeTimeout: bootloader.DefaultHandshakeTimeout,
			ReadTimeout:      bootloader.LinkReadTimeout,
			ResultTimeout:    bootloader.ResultReadTimeout,
		},
		Layout: bootloader.DefaultLayout(),
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Capture: capture.Config{
			Enabled: false,
			Path:    "captures",
			MaxRows: 100_000,
		},
	}
}

// DefaultPath returns ~/.config/qnflash/config.yaml, or a relative
// config.yaml when the user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "qnflash", "config.yaml")
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// .env next to the config file, then in the working directory
	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		// real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: QN_PORT, QN_BAUD, QN_CLOCK_MHZ, QN_HANDSHAKE_TIMEOUT,
// QN_LOG_LEVEL, QN_LOG_FILE, QN_MONITOR_ADDR, QN_CAPTURE_DIR
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("QN_PORT"); v != "" {
		c.Serial.PortPath = v
	}
	if v := os.Getenv("QN_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QN_BAUD: %w", err)
		}
		c.Serial.BaudRate = n
	}
	if v := os.Getenv("QN_CLOCK_MHZ"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("QN_CLOCK_MHZ: %w", err)
		}
		c.Serial.ClockMHz = f
	}
	if v := os.Getenv("QN_HANDSHAKE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QN_HANDSHAKE_TIMEOUT: %w", err)
		}
		c.Link.HandshakeTimeout = d
	}
	if v := os.Getenv("QN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QN_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("QN_MONITOR_ADDR"); v != "" {
		c.Monitor.ListenAddr = v
	}
	if v := os.Getenv("QN_CAPTURE_DIR"); v != "" {
		c.Capture.Enabled = true
		c.Capture.Path = v
	}
	return nil
}

// ClockHz returns the configured clock in Hz.
func (c *Config) ClockHz() uint32 {
	return uint32(c.Serial.ClockMHz*1e6 + 0.5)
}

// ClientOptions translates the config into bootloader options.
func (c *Config) ClientOptions() []bootloader.Option {
	return []bootloader.Option{
		bootloader.WithBaudRate(c.Serial.BaudRate),
		bootloader.WithClock(c.ClockHz()),
		bootloader.WithHandshakeTimeout(c.Link.HandshakeTimeout),
		bootloader.WithLinkTimeout(c.Link.ReadTimeout),
		bootloader.WithResultTimeout(c.Link.ResultTimeout),
		bootloader.WithLayout(c.Layout),
	}
}
