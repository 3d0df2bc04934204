package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	VisionProvider           string `yaml:"vision_provider"`
	VisionModel              string `yaml:"vision_model"`
	VisionMaxTokens          int    `yaml:"vision_max_tokens"`
	AnthropicAPIKey          string `yaml:"anthropic_api_key"`
	OpenAIAPIKey             string `yaml:"openai_api_key"`
	OpenAIBaseURL            string `yaml:"openai_base_url"`
	VisionHTTPTimeoutSeconds int    `yaml:"vision_http_timeout_seconds"`

	GlossaryPath string `yaml:"glossary_path"`

	// Normalization defaults applied to extraction output.
	PlaceholderName   string `yaml:"placeholder_name"`
	DefaultCategory   string `yaml:"default_category"`
	DefaultUnit       string `yaml:"default_unit"`
	DefaultExpiryDays int    `yaml:"default_expiry_days"` // 0 leaves expiration unset

	MaxImageBytes int `yaml:"max_image_bytes"`

	ExpirySweepTime string `yaml:"expiry_sweep_time"`
	ExpiryWarnDays  int    `yaml:"expiry_warn_days"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.VisionProvider, "VISION_PROVIDER")
	envOverride(&cfg.VisionModel, "VISION_MODEL")
	envOverrideInt(&cfg.VisionMaxTokens, "VISION_MAX_TOKENS")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverrideInt(&cfg.VisionHTTPTimeoutSeconds, "VISION_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.GlossaryPath, "GLOSSARY_PATH")
	envOverride(&cfg.PlaceholderName, "PLACEHOLDER_NAME")
	envOverride(&cfg.DefaultCategory, "DEFAULT_CATEGORY")
	envOverride(&cfg.DefaultUnit, "DEFAULT_UNIT")
	envOverrideInt(&cfg.DefaultExpiryDays, "DEFAULT_EXPIRY_DAYS")
	envOverrideInt(&cfg.MaxImageBytes, "MAX_IMAGE_BYTES")
	envOverride(&cfg.ExpirySweepTime, "EXPIRY_SWEEP_TIME")
	envOverrideInt(&cfg.ExpiryWarnDays, "EXPIRY_WARN_DAYS")

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./kjoleskapet.db"
	}
	if cfg.VisionProvider == "" {
		cfg.VisionProvider = "anthropic"
	}
	if cfg.VisionMaxTokens == 0 {
		cfg.VisionMaxTokens = 1024
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.VisionHTTPTimeoutSeconds == 0 {
		cfg.VisionHTTPTimeoutSeconds = 90
	}
	if cfg.PlaceholderName == "" {
		cfg.PlaceholderName = "Ukjent vare"
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = "Annet"
	}
	if cfg.DefaultUnit == "" {
		cfg.DefaultUnit = "stk"
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = 8 << 20
	}
	if cfg.ExpirySweepTime == "" {
		cfg.ExpirySweepTime = "06:00"
	}
	if cfg.ExpiryWarnDays == 0 {
		cfg.ExpiryWarnDays = 3
	}

	switch cfg.VisionProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when vision_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when vision_provider=openai")
		}
	default:
		log.Fatalf("vision_provider must be 'anthropic' or 'openai', got '%s'", cfg.VisionProvider)
	}

	if _, _, err := parseClock(cfg.ExpirySweepTime); err != nil {
		log.Fatalf("invalid expiry_sweep_time '%s': %v", cfg.ExpirySweepTime, err)
	}
	if cfg.VisionHTTPTimeoutSeconds < 1 {
		log.Fatalf("invalid vision_http_timeout_seconds '%d': must be >= 1", cfg.VisionHTTPTimeoutSeconds)
	}
	if cfg.DefaultExpiryDays < 0 {
		log.Fatalf("invalid default_expiry_days '%d': must be >= 0", cfg.DefaultExpiryDays)
	}
	if cfg.ExpiryWarnDays < 1 {
		log.Fatalf("invalid expiry_warn_days '%d': must be >= 1", cfg.ExpiryWarnDays)
	}
	if cfg.MaxImageBytes < 1024 {
		log.Fatalf("invalid max_image_bytes '%d': must be >= 1024", cfg.MaxImageBytes)
	}
	if cfg.GlossaryPath != "" {
		if _, err := LoadFoodGlossary(cfg.GlossaryPath); err != nil {
			log.Fatalf("invalid glossary_path '%s': %v", cfg.GlossaryPath, err)
		}
	}

	return cfg
}

// Policy returns the normalization defaults carried by this config.
func (c Config) Policy() NormalizePolicy {
	return NormalizePolicy{
		PlaceholderName:   c.PlaceholderName,
		DefaultCategory:   c.DefaultCategory,
		DefaultUnit:       c.DefaultUnit,
		DefaultExpiryDays: c.DefaultExpiryDays,
	}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func parseClock(s string) (int, int, error) {
	var hour, min int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hour, &min)
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("time out of range: %02d:%02d", hour, min)
	}
	return hour, min, nil
}
