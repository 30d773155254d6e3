package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luhtfiimanal/crowdlink/serial"
)

const DefaultFileName = "config.yaml"

// Environment variables that override the serial settings of a config file.
const (
	EnvPort = "ARDUINO_PORT"
	EnvBaud = "ARDUINO_BAUD"
)

// Config captures the user-adjustable knobs of the link service.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Session SessionConfig `yaml:"session"`
	Paths   PathsConfig   `yaml:"paths"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// SerialConfig describes the physical link.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	Driver      string        `yaml:"driver"`
	Delimiter   string        `yaml:"delimiter"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	Settle      time.Duration `yaml:"settle"`
}

// SessionConfig bounds command sessions.
type SessionConfig struct {
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// PathsConfig controls filesystem locations.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir"`
	ResultsDir string `yaml:"results_dir"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Port:        "/dev/ttyACM0",
			Baud:        230400,
			Driver:      serial.DriverTermios,
			Delimiter:   "\n",
			ReadTimeout: 500 * time.Millisecond,
			Settle:      1500 * time.Millisecond,
		},
		Session: SessionConfig{
			AckTimeout: 2 * time.Second,
		},
		Paths: PathsConfig{
			DataDir:    ".",
			ResultsDir: "results",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates a
// missing file. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
		}
		cfg.Source = candidate
	case errors.Is(err, os.ErrNotExist):
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	default:
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		c.Serial.Port = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBaud); ok && strings.TrimSpace(v) != "" {
		baud, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer value %q", EnvBaud, v)
		}
		c.Serial.Baud = baud
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Serial.Port) == "" {
		return errors.New("serial.port must not be empty")
	}
	if c.Serial.Baud <= 0 {
		return errors.New("serial.baud must be positive")
	}
	switch c.Serial.Driver {
	case serial.DriverTermios, serial.DriverBugst:
	default:
		return fmt.Errorf("unsupported serial.driver %q", c.Serial.Driver)
	}
	if c.Serial.ReadTimeout <= 0 {
		return errors.New("serial.read_timeout must be positive")
	}
	if c.Serial.Settle < 0 {
		return errors.New("serial.settle must not be negative")
	}
	if c.Session.AckTimeout <= 0 {
		return errors.New("session.ack_timeout must be positive")
	}
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		return errors.New("paths.results_dir must not be empty")
	}
	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Serial.Port = strings.TrimSpace(c.Serial.Port)
	c.Serial.Driver = strings.ToLower(strings.TrimSpace(c.Serial.Driver))
	if c.Serial.Driver == "" {
		c.Serial.Driver = defaults.Serial.Driver
	}
	if c.Serial.Delimiter == "" {
		c.Serial.Delimiter = defaults.Serial.Delimiter
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = defaults.Serial.ReadTimeout
	}
	if c.Session.AckTimeout == 0 {
		c.Session.AckTimeout = defaults.Session.AckTimeout
	}

	c.Paths.DataDir = filepath.Clean(strings.TrimSpace(c.Paths.DataDir))
	c.Paths.ResultsDir = filepath.Clean(strings.TrimSpace(c.Paths.ResultsDir))
	if c.Paths.ResultsDir == "." {
		c.Paths.ResultsDir = defaults.Paths.ResultsDir
	}
	if strings.TrimSpace(c.API.Listen) == "" {
		c.API.Listen = defaults.API.Listen
	}

	if lvl, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = lvl
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}
}

// SerialPort converts the serial section into a driver configuration.
func (c Config) SerialPort() serial.Config {
	return serial.Config{
		Device:      c.Serial.Port,
		BaudRate:    c.Serial.Baud,
		Delimiter:   c.Serial.Delimiter,
		ReadTimeout: c.Serial.ReadTimeout,
		Driver:      c.Serial.Driver,
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
