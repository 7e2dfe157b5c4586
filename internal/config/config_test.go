package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	configJSON := `{
		"server": {
			"port": 8080,
			"stage": "prod",
			"api_id": "abc123"
		},
		"integrations": {
			"mode": "lambda-proxy",
			"route_selection_expression": "$request.body.action",
			"table": {
				"$connect": "http://localhost:9000/connect",
				"$disconnect": "http://localhost:9000/disconnect",
				"$default": "http://localhost:9000/default",
				"join": "http://localhost:9000/join"
			}
		},
		"session": {
			"idle_timeout": "5m",
			"hard_timeout": "1h"
		},
		"logging": {
			"level": "debug",
			"format": "text"
		}
	}`

	path := writeTempConfig(t, configJSON)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Stage != "prod" {
		t.Errorf("Stage = %q, want prod", cfg.Server.Stage)
	}
	if cfg.Server.DomainName != "localhost:8080" {
		t.Errorf("DomainName = %q, want localhost:8080", cfg.Server.DomainName)
	}
	if cfg.Integrations.Mode != ModeLambdaProxy {
		t.Errorf("Mode = %q, want %q", cfg.Integrations.Mode, ModeLambdaProxy)
	}
	if cfg.Session.IdleTimeout.Duration != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.Session.IdleTimeout.Duration)
	}
	if cfg.Session.HardTimeout.Duration != time.Hour {
		t.Errorf("HardTimeout = %v, want 1h", cfg.Session.HardTimeout.Duration)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `{
		"server": {"port": 9090},
		"integrations": {"table": {"$connect": "http://localhost/connect"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Stage != "dev" {
		t.Errorf("Stage default = %q, want dev", cfg.Server.Stage)
	}
	if cfg.Server.APIID != "localwsapi" {
		t.Errorf("APIID default = %q, want localwsapi", cfg.Server.APIID)
	}
	if cfg.Integrations.Mode != ModeLambdaProxy {
		t.Errorf("Mode default = %q, want %q", cfg.Integrations.Mode, ModeLambdaProxy)
	}
	if cfg.Session.IdleTimeout.Duration != 10*time.Minute {
		t.Errorf("IdleTimeout default = %v, want 10m", cfg.Session.IdleTimeout.Duration)
	}
	if cfg.Session.HardTimeout.Duration != 2*time.Hour {
		t.Errorf("HardTimeout default = %v, want 2h", cfg.Session.HardTimeout.Duration)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format default = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"missing port", `{"integrations": {"table": {"$connect": "http://x"}}}`},
		{"bad port", `{"server": {"port": 99999}, "integrations": {"table": {"$connect": "http://x"}}}`},
		{"bad mode", `{"server": {"port": 80}, "integrations": {"mode": "rest", "table": {"$connect": "http://x"}}}`},
		{"missing $connect", `{"server": {"port": 80}, "integrations": {"table": {}}}`},
		{"bad route expression", `{"server": {"port": 80}, "integrations": {"route_selection_expression": "body.action", "table": {"$connect": "http://x"}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.json)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load(%s): expected error, got nil", tc.name)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.json"); err == nil {
		t.Fatal("Load: expected error for missing file, got nil")
	}
}
