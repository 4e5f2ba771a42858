package config

import (
	"fmt"
)

type StartupFlags struct {
	ConfigFile    string
	WebConfigFile string
	Version       bool
}

type Config struct {
	Listen          ListenConfig
	Log             LogConfig
	MetricsPath     string         `yaml:"metrics_path"`
	Smartctl        SmartctlConfig `yaml:"smartctl"`
	MaxConcurrency  int            `yaml:"max_concurrency"`
	CooldownSeconds int            `yaml:"cooldown_seconds"`
}

type SmartctlConfig struct {
	Executable string `yaml:"executable"`
	DeviceType string `yaml:"device_type"`
	Attempts   int    `yaml:"attempts"`
	IntervalMS int    `yaml:"interval_ms"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type ListenConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate rejects probe parameters that would make scrape timing
// unpredictable. Called once at startup; the config is immutable afterwards.
func (c *Config) Validate() error {
	if c.Smartctl.Attempts < 1 {
		return fmt.Errorf("smartctl.attempts must be >= 1, got %d", c.Smartctl.Attempts)
	}
	if c.Smartctl.TimeoutMS <= 0 {
		return fmt.Errorf("smartctl.timeout_ms must be > 0, got %d", c.Smartctl.TimeoutMS)
	}
	if c.Smartctl.IntervalMS < 0 {
		return fmt.Errorf("smartctl.interval_ms must be >= 0, got %d", c.Smartctl.IntervalMS)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must be >= 0, got %d", c.CooldownSeconds)
	}
	return nil
}
