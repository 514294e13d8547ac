package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AIConfig holds settings for the external reasoning backend. An empty APIKey
// disables the AI-backed strategy entirely; the rule engine then runs alone.
type AIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     time.Duration
}

// Config holds service configuration assembled from defaults, an optional YAML
// file, and environment variable overrides (highest precedence).
type Config struct {
	DatabaseURL string   `yaml:"database_url"`
	HTTPAddr    string   `yaml:"http_addr"`
	JWTSecret   string   `yaml:"jwt_secret"`
	AI          AIConfig `yaml:"ai"`
}

type fileAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_seconds"`
}

type fileConfig struct {
	DatabaseURL string       `yaml:"database_url"`
	HTTPAddr    string       `yaml:"http_addr"`
	JWTSecret   string       `yaml:"jwt_secret"`
	AI          fileAIConfig `yaml:"ai"`
}

const (
	defaultHTTPAddr      = ":8080"
	defaultAIBaseURL     = "https://api.openai.com/v1"
	defaultAIModel       = "gpt-4o-mini"
	defaultAITemperature = 0.2
	defaultAITimeout     = 20 * time.Second
)

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply. A missing file at path is an
// error; an unreadable or malformed file is too.
func Load(path string) (*Config, error) {
	cfg := &Config{
		HTTPAddr: defaultHTTPAddr,
		AI: AIConfig{
			BaseURL:     defaultAIBaseURL,
			Model:       defaultAIModel,
			Temperature: defaultAITemperature,
			Timeout:     defaultAITimeout,
		},
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: database_url is required (set DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: jwt_secret is required (set JWT_SECRET)")
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = defaultAITimeout
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: file %s does not exist", path)
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.JWTSecret != "" {
		cfg.JWTSecret = fc.JWTSecret
	}
	if fc.AI.BaseURL != "" {
		cfg.AI.BaseURL = fc.AI.BaseURL
	}
	if fc.AI.APIKey != "" {
		cfg.AI.APIKey = fc.AI.APIKey
	}
	if fc.AI.Model != "" {
		cfg.AI.Model = fc.AI.Model
	}
	if fc.AI.Temperature > 0 {
		cfg.AI.Temperature = fc.AI.Temperature
	}
	if fc.AI.TimeoutSec > 0 {
		cfg.AI.Timeout = time.Duration(fc.AI.TimeoutSec) * time.Second
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.AI.BaseURL, "AI_BASE_URL")
	setString(&cfg.AI.APIKey, "AI_API_KEY")
	setString(&cfg.AI.Model, "AI_MODEL")

	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AI.Timeout = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
