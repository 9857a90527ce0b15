// Package config loads the VM's optional TOML configuration file:
// device attachments and feature overrides that are cumbersome to
// repeat as CLI flags every run. CLI flags always win over a loaded
// file's values — the caller applies overrides after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config mirrors the VM's feature/device surface as TOML sections.
type Config struct {
	Memory struct {
		Size int `toml:"size"`
	} `toml:"memory"`

	Features struct {
		GenIO   bool `toml:"gen_io"`
		Inp     bool `toml:"inp"`
		PioTerm bool `toml:"pio_term"`
		DmaTerm bool `toml:"dma_term"`
		Disk    bool `toml:"disk"`
	} `toml:"features"`

	Disk struct {
		Image string `toml:"image"`
	} `toml:"disk"`

	Devices struct {
		PollInterval time.Duration `toml:"poll_interval"`
	} `toml:"devices"`

	Trace struct {
		Enabled bool   `toml:"enabled"`
		Output  string `toml:"output"`
	} `toml:"trace"`
}

// Default returns a Config with the VM's built-in defaults: 500000
// bytes of RAM (the same as the --memory flag's default), no optional
// devices attached, a 100 microsecond device poll.
func Default() *Config {
	cfg := &Config{}
	cfg.Memory.Size = 500000
	cfg.Devices.PollInterval = 100 * time.Microsecond
	return cfg
}

// Load reads and parses a TOML config file at path, starting from
// Default's values so any section the file omits keeps its default.
// A missing file is not an error — it is the normal case when the
// caller runs without --config.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
