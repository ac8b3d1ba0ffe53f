package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures process configuration. Values load from an optional YAML
// file (FEDREG_CONFIG), then environment variables override. A .env file in
// the working directory is honored for local development.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		LogFormat string `yaml:"log_format"`
		LogLevel  string `yaml:"log_level"`
	} `yaml:"server"`

	Registry struct {
		// BaseIdentifier is this authority's own entity identifier, used as
		// iss on every statement it signs.
		BaseIdentifier string `yaml:"base_identifier"`
		// SigningSeed deterministically derives the mock signing key pair.
		SigningSeed string `yaml:"signing_seed"`
		// StatementTTL bounds the lifetime of issued statements.
		StatementTTL time.Duration `yaml:"statement_ttl"`
		// RecognitionStrategy is "trust-chain" (default) or "directory".
		RecognitionStrategy string   `yaml:"recognition_strategy"`
		TrustAnchors        []string `yaml:"trust_anchors"`
		SeedDemoEntities    bool     `yaml:"seed_demo_entities"`
	} `yaml:"registry"`

	Storage struct {
		// Driver selects the directory backend: memory, postgres, or redis.
		Driver      string `yaml:"driver"`
		PostgresDSN string `yaml:"postgres_dsn"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"storage"`

	AdminToken string `yaml:"admin_token"`
}

// Load builds the configuration. The YAML file is optional; env always wins.
func Load() (*Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("FEDREG_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Registry.BaseIdentifier == "" {
		return nil, fmt.Errorf("registry base identifier is required")
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.LogFormat = "text"
	cfg.Server.LogLevel = "info"
	cfg.Registry.BaseIdentifier = "https://registry.example.org"
	cfg.Registry.SigningSeed = "dev-seed-change-in-production"
	cfg.Registry.StatementTTL = 24 * time.Hour
	cfg.Registry.RecognitionStrategy = "trust-chain"
	cfg.Registry.TrustAnchors = []string{"https://trust-anchor.example.org"}
	cfg.Registry.SeedDemoEntities = true
	cfg.Storage.Driver = "memory"
	return cfg
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "FEDREG_ADDR")
	setString(&cfg.Server.LogFormat, "FEDREG_LOG_FORMAT")
	setString(&cfg.Server.LogLevel, "FEDREG_LOG_LEVEL")
	setString(&cfg.Registry.BaseIdentifier, "FEDREG_BASE_IDENTIFIER")
	setString(&cfg.Registry.SigningSeed, "FEDREG_SIGNING_SEED")
	setString(&cfg.Registry.RecognitionStrategy, "FEDREG_RECOGNITION_STRATEGY")
	setString(&cfg.Storage.Driver, "FEDREG_STORAGE_DRIVER")
	setString(&cfg.Storage.PostgresDSN, "FEDREG_POSTGRES_DSN")
	setString(&cfg.Storage.RedisURL, "FEDREG_REDIS_URL")
	setString(&cfg.AdminToken, "FEDREG_ADMIN_TOKEN")

	if v := os.Getenv("FEDREG_STATEMENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Registry.StatementTTL = d
		}
	}
	if v := os.Getenv("FEDREG_TRUST_ANCHORS"); v != "" {
		anchors := strings.Split(v, ",")
		for i := range anchors {
			anchors[i] = strings.TrimSpace(anchors[i])
		}
		cfg.Registry.TrustAnchors = anchors
	}
	if v := os.Getenv("FEDREG_SEED_DEMO"); v != "" {
		cfg.Registry.SeedDemoEntities = v == "true" || v == "1"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
