// Package config loads analyzer settings from an optional YAML file and the
// environment. Only the CLI calls Load; components receive plain values.
package config

import (
	"errors"
	"float_share/pkg/core/domain"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the full analyzer configuration.
type Config struct {
	Gemini    GeminiConfig    `yaml:"gemini"`
	Retry     RetryConfig     `yaml:"retry"`
	SEC       SECConfig       `yaml:"sec"`
	Paths     PathsConfig     `yaml:"paths"`
	Log       LogConfig       `yaml:"log"`
	Ownership OwnershipConfig `yaml:"ownership"`
}

type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	NotReadyDelay  time.Duration `yaml:"not_ready_delay"`
	TransientDelay time.Duration `yaml:"transient_delay"`
}

type SECConfig struct {
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

type PathsConfig struct {
	MethodologyDocument string `yaml:"methodology_document"`
	AssetDir            string `yaml:"asset_dir"`
	ResultsDir          string `yaml:"results_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type OwnershipConfig struct {
	CompressionThreshold int `yaml:"compression_threshold"`
}

const (
	DefaultModel               = "gemini-2.5-flash"
	DefaultMethodologyDocument = "./doc_assets/sp_float.pdf"
	DefaultAssetDir            = "doc_assets"
	DefaultUserAgent           = "FloatShareAnalyzer/1.0 (contact@example.com)"
	DefaultCompression         = 8000
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Gemini: GeminiConfig{Model: DefaultModel, Temperature: 0.0},
		Retry: RetryConfig{
			MaxAttempts:    3,
			NotReadyDelay:  10 * time.Second,
			TransientDelay: 5 * time.Second,
		},
		SEC: SECConfig{
			UserAgent:         DefaultUserAgent,
			RequestsPerSecond: 1,
			Timeout:           30 * time.Second,
		},
		Paths: PathsConfig{
			MethodologyDocument: DefaultMethodologyDocument,
			AssetDir:            DefaultAssetDir,
			ResultsDir:          ".",
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Ownership: OwnershipConfig{CompressionThreshold: DefaultCompression},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// optional
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, domain.WrapError(domain.ErrParse, "config.load", fmt.Errorf("%s: %w", path, err))
			}
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	str("GEMINI_MODEL", &cfg.Gemini.Model)
	str("SP_DOCUMENT_PATH", &cfg.Paths.MethodologyDocument)
	str("FLOAT_ASSET_DIR", &cfg.Paths.AssetDir)
	str("FLOAT_RESULTS_DIR", &cfg.Paths.ResultsDir)
	str("SEC_USER_AGENT", &cfg.SEC.UserAgent)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v, ok := lookup("SEC_REQUESTS_PER_SECOND"); ok && strings.TrimSpace(v) != "" {
		rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return domain.WrapError(domain.ErrValidation, "config.env",
				fmt.Errorf("SEC_REQUESTS_PER_SECOND must be a number: %w", err))
		}
		cfg.SEC.RequestsPerSecond = rps
	}
	return nil
}

// fillDefaults restores zero values a partial YAML file may have left.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Gemini.Model == "" {
		c.Gemini.Model = def.Gemini.Model
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.NotReadyDelay <= 0 {
		c.Retry.NotReadyDelay = def.Retry.NotReadyDelay
	}
	if c.Retry.TransientDelay <= 0 {
		c.Retry.TransientDelay = def.Retry.TransientDelay
	}
	if c.SEC.UserAgent == "" {
		c.SEC.UserAgent = def.SEC.UserAgent
	}
	if c.SEC.RequestsPerSecond <= 0 {
		c.SEC.RequestsPerSecond = def.SEC.RequestsPerSecond
	}
	if c.SEC.Timeout <= 0 {
		c.SEC.Timeout = def.SEC.Timeout
	}
	if c.Paths.MethodologyDocument == "" {
		c.Paths.MethodologyDocument = def.Paths.MethodologyDocument
	}
	if c.Paths.AssetDir == "" {
		c.Paths.AssetDir = def.Paths.AssetDir
	}
	if c.Paths.ResultsDir == "" {
		c.Paths.ResultsDir = def.Paths.ResultsDir
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Ownership.CompressionThreshold <= 0 {
		c.Ownership.CompressionThreshold = def.Ownership.CompressionThreshold
	}
}

// Validate checks the settings needed to reach the generation service.
func (c Config) Validate() error {
	var problems []string
	if c.Gemini.APIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is not set")
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature %.2f out of range [0, 2]", c.Gemini.Temperature))
	}
	if len(problems) > 0 {
		return domain.WrapError(domain.ErrValidation, "config.validate", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
