package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://127.0.0.1:8080/",
		"127.0.0.1:9000": "http://127.0.0.1:9000/",
		"localhost:80":   "http://localhost:80/",
	}
	for addr, want := range tests {
		if got := settingsURL(addr); got != want {
			t.Errorf("settingsURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with env overrides", func(t *testing.T) {
		t.Setenv("YUBIMOJI_ADDR", "127.0.0.1:9999")
		cfg, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Server.Addr != "127.0.0.1:9999" {
			t.Errorf("Server.Addr = %q", cfg.Server.Addr)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "yubimoji.yaml")
		data := "tables:\n  labels: [\"あ\", \"い\"]\n"
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if len(cfg.Tables.Labels) != 2 {
			t.Errorf("Tables.Labels = %v", cfg.Tables.Labels)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error")
		}
	})
}
