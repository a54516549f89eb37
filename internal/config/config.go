package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the commscript configuration.
type Config struct {
	Driver DriverConfig `yaml:"driver"`
	Script ScriptConfig `yaml:"script"`
	Report ReportConfig `yaml:"report"`
}

// DriverConfig selects and parameterises the communication port.
type DriverConfig struct {
	Kind     string `yaml:"kind"` // sim | serial | usb
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits string `yaml:"stop_bits"`
	VID      uint16 `yaml:"vid"`
	PID      uint16 `yaml:"pid"`
}

// ScriptConfig tunes the interpreter and runner. Durations are Go duration
// strings such as "500ms".
type ScriptConfig struct {
	Timeout      string `yaml:"timeout"`
	MaxRecvSize  int    `yaml:"max_recv_size"`
	ChunkSize    int    `yaml:"chunk_size"`
	CommandDelay string `yaml:"command_delay"`
	IdleGap      string `yaml:"idle_gap"`
}

// ReportConfig controls where run results go. Empty values disable a sink.
type ReportConfig struct {
	SQLite string     `yaml:"sqlite"`
	MQTT   MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig describes the result broker.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

const (
	DriverSim    = "sim"
	DriverSerial = "serial"
	DriverUSB    = "usb"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverConfig{
			Kind:     DriverSim,
			BaudRate: 115200,
			DataBits: 8,
			Parity:   "none",
			StopBits: "1",
		},
		Script: ScriptConfig{
			Timeout:     "5s",
			MaxRecvSize: 1024,
			ChunkSize:   1024,
			IdleGap:     "100ms",
		},
		Report: ReportConfig{
			MQTT: MQTTConfig{
				ClientID: "commscript",
				Topic:    "commscript",
			},
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	if dir := os.Getenv("APPDATA"); dir != "" {
		return filepath.Join(dir, "OpenTraceComm", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "opentracecomm", "config.yaml")
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and duration syntax.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Driver.Kind) {
	case DriverSim:
	case DriverSerial:
		if c.Driver.Port == "" {
			errs = append(errs, errors.New("driver.port is required for the serial driver"))
		}
		if c.Driver.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("driver.baud must be positive, got %d", c.Driver.BaudRate))
		}
	case DriverUSB:
		if c.Driver.VID == 0 || c.Driver.PID == 0 {
			errs = append(errs, errors.New("driver.vid and driver.pid are required for the usb driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("driver.kind %q is not one of sim, serial, usb", c.Driver.Kind))
	}

	if c.Script.MaxRecvSize < 0 {
		errs = append(errs, fmt.Errorf("script.max_recv_size must not be negative"))
	}
	if c.Script.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("script.chunk_size must not be negative"))
	}
	for name, v := range map[string]string{
		"script.timeout":       c.Script.Timeout,
		"script.command_delay": c.Script.CommandDelay,
		"script.idle_gap":      c.Script.IdleGap,
	} {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Report.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("report.mqtt.qos must be 0, 1 or 2"))
	}
	return errors.Join(errs...)
}

// TimeoutDuration returns the per-operation timeout. Zero means the driver
// default.
func (s ScriptConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(s.Timeout)
	return d
}

// CommandDelayDuration returns the pause between commands.
func (s ScriptConfig) CommandDelayDuration() time.Duration {
	d, _ := parseDuration(s.CommandDelay)
	return d
}

// IdleGapDuration returns the quiet period that ends exact reads.
func (s ScriptConfig) IdleGapDuration() time.Duration {
	d, _ := parseDuration(s.IdleGap)
	return d
}

// parseDuration accepts an empty string as zero.
func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
