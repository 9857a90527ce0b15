package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netizen-a/stackl/config"
)

func TestDefaultValues(t *testing.T) {
	cfg := config.Default()
	if cfg.Memory.Size != 500000 {
		t.Fatalf("Memory.Size = %d, want %d", cfg.Memory.Size, 500000)
	}
	if cfg.Devices.PollInterval != 100*time.Microsecond {
		t.Fatalf("Devices.PollInterval = %v, want 100us", cfg.Devices.PollInterval)
	}
	if cfg.Features.GenIO || cfg.Features.Inp || cfg.Features.PioTerm || cfg.Features.DmaTerm || cfg.Features.Disk {
		t.Fatal("no feature should default to enabled; feature selection belongs to the object header or explicit flags")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.Size != config.Default().Memory.Size {
		t.Fatal("Load(\"\") should return the default configuration")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.Size != config.Default().Memory.Size {
		t.Fatal("Load of a nonexistent file should return the default configuration")
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stackl.toml")
	contents := `
[memory]
size = 65536

[features]
gen_io = true
inp = true

[disk]
image = "disk.img"

[trace]
enabled = true
output = "trace.log"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.Size != 65536 {
		t.Fatalf("Memory.Size = %d, want 65536", cfg.Memory.Size)
	}
	if !cfg.Features.GenIO || !cfg.Features.Inp {
		t.Fatal("expected gen_io and inp features enabled")
	}
	if cfg.Features.PioTerm || cfg.Features.DmaTerm || cfg.Features.Disk {
		t.Fatal("unmentioned features should stay disabled")
	}
	if cfg.Disk.Image != "disk.img" {
		t.Fatalf("Disk.Image = %q, want %q", cfg.Disk.Image, "disk.img")
	}
	if !cfg.Trace.Enabled || cfg.Trace.Output != "trace.log" {
		t.Fatalf("Trace = %+v, want enabled with output trace.log", cfg.Trace)
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("this is not valid toml ["), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected an error for malformed TOML")
	}
}
