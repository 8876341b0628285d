package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.DashboardInterval() != 2*time.Second {
		t.Fatalf("dashboard interval = %v", cfg.DashboardInterval())
	}
	if cfg.DetailInterval() != 5*time.Second {
		t.Fatalf("detail interval = %v", cfg.DetailInterval())
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL == "" {
		t.Fatal("defaults not applied")
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	data := []byte("server:\n  url: https://riberry.example.com\npoll:\n  dashboard_ms: 1000\n")
	if err := os.WriteFile(filepath.Join(dir, "riberry.yml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "https://riberry.example.com" {
		t.Fatalf("url = %s", cfg.Server.URL)
	}
	if cfg.DashboardInterval() != time.Second {
		t.Fatalf("dashboard interval = %v", cfg.DashboardInterval())
	}
	// Unset keys keep their defaults.
	if cfg.DetailInterval() != 5*time.Second {
		t.Fatalf("detail interval = %v", cfg.DetailInterval())
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty url accepted")
	}
	cfg = Default()
	cfg.Poll.DashboardMS = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero interval accepted")
	}
}
