package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenderwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvTier, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tier != domain.TierCommunity {
		t.Errorf("expected community tier, got %s", cfg.Tier)
	}
	if cfg.Generator.Seed != domain.DefaultSeed {
		t.Errorf("expected seed %d, got %d", domain.DefaultSeed, cfg.Generator.Seed)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Repository.Driver)
	}
}

func TestLoadProTierFromEnv(t *testing.T) {
	t.Setenv(EnvTier, "pro")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tier != domain.TierPro || cfg.EventBus.Type != "nats" || !cfg.Worker.Enabled {
		t.Errorf("expected pro defaults, got tier=%s bus=%s worker=%v", cfg.Tier, cfg.EventBus.Type, cfg.Worker.Enabled)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvTier, "")
	t.Setenv("TW_TEST_PASSWORD", "s3cret")

	path := writeConfig(t, `
tier: pro
server:
  port: 9090
generator:
  seed: 7
  companies: 100
scoring:
  highThreshold: 0.8
graphDb:
  enabled: true
  password: ${TW_TEST_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Generator.Seed != 7 || cfg.Generator.Companies != 100 {
		t.Errorf("generator overlay not applied: %+v", cfg.Generator)
	}
	// untouched keys keep their defaults
	if cfg.Generator.Directors != 200 {
		t.Errorf("expected default directors, got %d", cfg.Generator.Directors)
	}
	if cfg.Scoring.HighThreshold != 0.8 || cfg.Scoring.MediumThreshold != 0.40 {
		t.Errorf("scoring overlay not applied: %+v", cfg.Scoring)
	}
	if cfg.GraphDB.Password != "s3cret" {
		t.Errorf("expected expanded password, got %q", cfg.GraphDB.Password)
	}
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("expected pro repository, got %s", cfg.Repository.Driver)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv(EnvTier, "")
	t.Setenv(EnvConfig, writeConfig(t, "server:\n  port: 7070\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTier, "")
	t.Setenv(EnvSeed, "1234")
	t.Setenv(EnvPort, "8181")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvNeo4jURI, "bolt://graph:7687")
	t.Setenv(EnvNeo4jUser, "admin")
	t.Setenv(EnvNeo4jPassword, "pw")

	cfg, err := Load(writeConfig(t, "generator:\n  seed: 5\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generator.Seed != 1234 {
		t.Errorf("environment seed must win over the file, got %d", cfg.Generator.Seed)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("expected port 8181, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging, got %s", cfg.Logging.Level)
	}
	g := cfg.GraphDB
	if !g.Enabled || g.URI != "bolt://graph:7687" || g.Username != "admin" || g.Password != "pw" {
		t.Errorf("graph overrides not applied: %+v", g)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }},
		{"bad yaml", func(t *testing.T) string { return writeConfig(t, "server: [1, 2") }},
		{"unknown tier", func(t *testing.T) string { return writeConfig(t, "tier: enterprise\n") }},
		{"bad seed", func(t *testing.T) string { t.Setenv(EnvSeed, "abc"); return "" }},
		{"bad port", func(t *testing.T) string { t.Setenv(EnvPort, "99999"); return "" }},
		{"inverted thresholds", func(t *testing.T) string {
			return writeConfig(t, "scoring:\n  highThreshold: 0.3\n  mediumThreshold: 0.5\n")
		}},
		{"negative weight", func(t *testing.T) string { return writeConfig(t, "scoring:\n  shellWeight: -1\n") }},
		{"graph without uri", func(t *testing.T) string { return writeConfig(t, "graphDb:\n  enabled: true\n  uri: \"\"\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvTier, "")
			t.Setenv(EnvConfig, "")
			path := tt.setup(t)
			if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(domain.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record must be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected a JSON record, got %q", out)
	}

	buf.Reset()
	NewLogger(domain.LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("trace")
	if !strings.Contains(buf.String(), "msg=trace") {
		t.Errorf("expected a text record, got %q", buf.String())
	}
}
