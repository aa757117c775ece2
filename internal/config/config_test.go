package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kefctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Speaker.Address != "192.168.4.47" || cfg.Speaker.Port != 50001 {
		t.Fatalf("unexpected speaker defaults: %+v", cfg.Speaker)
	}
	if cfg.Web.ListenAddr != "0.0.0.0:50000" || !cfg.Web.Enabled {
		t.Fatalf("unexpected web defaults: %+v", cfg.Web)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("KEF_ADDR", "10.0.0.9")
	t.Setenv("MQTT_PASS", "secret")
	path := writeConfig(t, `
speaker:
  address: ${KEF_ADDR}
  volume_step: 0.1
mqtt:
  enabled: true
  password: ${MQTT_PASS}
sqlite:
  path: /tmp/kefctl.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Speaker.Address != "10.0.0.9" || cfg.Speaker.VolumeStep != 0.1 {
		t.Fatalf("unexpected speaker: %+v", cfg.Speaker)
	}
	if cfg.Speaker.Port != 50001 {
		t.Fatalf("port default lost: %d", cfg.Speaker.Port)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Password != "secret" || cfg.MQTT.TopicPrefix != "kefctl" {
		t.Fatalf("unexpected mqtt: %+v", cfg.MQTT)
	}
	if cfg.SQLite.Path != "/tmp/kefctl.db" {
		t.Fatalf("unexpected sqlite path: %q", cfg.SQLite.Path)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
speaker:
  driver: bluetooth
  port: 70000
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"speaker.driver", "speaker.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadEmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadAllowedCommands(t *testing.T) {
	path := writeConfig(t, `
security:
  allowed_commands:
    mqtt: [get_volume, get_state]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Security.AllowedCommands["mqtt"]; len(got) != 2 || got[1] != "get_state" {
		t.Fatalf("unexpected allowlist: %#v", cfg.Security.AllowedCommands)
	}
}
