// Package config loads TenderWatch configuration from tier defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Environment variables read by Load.
const (
	EnvTier          = "TENDERWATCH_TIER"
	EnvConfig        = "TENDERWATCH_CONFIG"
	EnvSeed          = "TENDERWATCH_SEED"
	EnvPort          = "TENDERWATCH_PORT"
	EnvDebug         = "TENDERWATCH_DEBUG"
	EnvNeo4jURI      = "TENDERWATCH_NEO4J_URI"
	EnvNeo4jUser     = "TENDERWATCH_NEO4J_USER"
	EnvNeo4jPassword = "TENDERWATCH_NEO4J_PASSWORD"
)

// ErrInvalidConfig wraps every configuration failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load builds the configuration. An empty path falls back to
// TENDERWATCH_CONFIG; when neither is set only defaults and environment
// apply.
func Load(path string) (*domain.Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
		data = []byte(os.ExpandEnv(string(raw)))
	}

	tier, err := selectTier(data)
	if err != nil {
		return nil, err
	}

	cfg := domain.DefaultConfig()
	if tier == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectTier picks the base defaults. The environment wins over the file.
func selectTier(data []byte) (domain.Tier, error) {
	if env := os.Getenv(EnvTier); env != "" {
		return parseTier(env)
	}
	if len(data) == 0 {
		return domain.TierCommunity, nil
	}

	var head struct {
		Tier string `yaml:"tier"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if head.Tier == "" {
		return domain.TierCommunity, nil
	}
	return parseTier(head.Tier)
}

func parseTier(s string) (domain.Tier, error) {
	switch t := domain.Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case domain.TierCommunity, domain.TierPro:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidConfig, s)
	}
}

func applyEnv(cfg *domain.Config) error {
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvSeed, v)
		}
		cfg.Generator.Seed = seed
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port", ErrInvalidConfig, EnvPort, v)
		}
		cfg.Server.Port = port
	}
	if os.Getenv(EnvDebug) == "true" {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv(EnvNeo4jURI); v != "" {
		cfg.GraphDB.URI = v
		cfg.GraphDB.Enabled = true
	}
	if v := os.Getenv(EnvNeo4jUser); v != "" {
		cfg.GraphDB.Username = v
	}
	if v := os.Getenv(EnvNeo4jPassword); v != "" {
		cfg.GraphDB.Password = v
	}
	return nil
}

func validate(cfg *domain.Config) error {
	s := cfg.Scoring
	switch {
	case cfg.Server.Port <= 0 || cfg.Server.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Server.Port)
	case s.SharedDirectorWeight < 0 || s.TenderPatternWeight < 0 || s.CentralityWeight < 0 || s.ShellWeight < 0:
		return fmt.Errorf("%w: scoring weights must not be negative", ErrInvalidConfig)
	case s.MediumThreshold < 0 || s.HighThreshold > 1 || s.MediumThreshold >= s.HighThreshold:
		return fmt.Errorf("%w: thresholds must satisfy 0 <= medium < high <= 1", ErrInvalidConfig)
	case cfg.GraphDB.Enabled && cfg.GraphDB.URI == "":
		return fmt.Errorf("%w: graphDb.uri is required when the export is enabled", ErrInvalidConfig)
	}
	return nil
}

// NewLogger builds the process logger from the logging settings.
func NewLogger(cfg domain.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
