package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.IntervalMinutes != 15 {
		t.Fatalf("IntervalMinutes = %d, want default 15", cfg.Scheduler.IntervalMinutes)
	}
	if !cfg.Scheduler.CatchUp {
		t.Fatal("CatchUp default = false, want true")
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
path = "/tmp/bills.db"

[scheduler]
interval_minutes = 5
catch_up = false
workers = 8
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/bills.db" {
		t.Fatalf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Scheduler.Interval() != 5*time.Minute {
		t.Fatalf("Interval = %s, want 5m", cfg.Scheduler.Interval())
	}
	if cfg.Scheduler.CatchUp {
		t.Fatal("CatchUp = true, want false")
	}
	if cfg.Scheduler.Workers != 8 {
		t.Fatalf("Workers = %d, want 8", cfg.Scheduler.Workers)
	}
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[scheduler]\ninterval_minutes = 0\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.IntervalMinutes != 15 {
		t.Fatalf("IntervalMinutes = %d, want fallback 15", cfg.Scheduler.IntervalMinutes)
	}
}
