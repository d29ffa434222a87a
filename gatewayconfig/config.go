// Package gatewayconfig loads gateway configuration from a JSON or YAML
// file, with MASUMI_* environment variables taking precedence. Service
// tokens are expected from the environment; the file exists for everything
// that is safe to commit.
package gatewayconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/masumi-network/masumi-gateway/internal/config"
)

type Config struct {
	RegistryURL   string `json:"registryUrl" yaml:"registryUrl"`
	RegistryToken string `json:"registryToken" yaml:"registryToken"`
	PaymentURL    string `json:"paymentUrl" yaml:"paymentUrl"`
	PaymentToken  string `json:"paymentToken" yaml:"paymentToken"`

	APIAddr          string `json:"apiAddr" yaml:"apiAddr"`
	APIToken         string `json:"apiToken" yaml:"apiToken"`
	AllowLocalNoAuth bool   `json:"allowLocalNoAuth" yaml:"allowLocalNoAuth"`

	PreviewLimit       int `json:"previewLimit" yaml:"previewLimit"`
	HTTPTimeoutSeconds int `json:"httpTimeoutSeconds" yaml:"httpTimeoutSeconds"`

	// EventDBPath enables the sqlite event store when set.
	EventDBPath string `json:"eventDbPath" yaml:"eventDbPath"`

	// RedisAddr enables streaming events to a redis stream when set.
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisStream   string `json:"redisStream" yaml:"redisStream"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb"`

	// TracingEnabled bridges events onto the global OpenTelemetry tracer.
	TracingEnabled bool `json:"tracingEnabled" yaml:"tracingEnabled"`
}

func Default() Config {
	return Config{
		RegistryURL: "https://registry.masumi.network",
		PaymentURL:  "https://payment.masumi.network",
		APIAddr:     "127.0.0.1:7171",
	}
}

// Load reads an optional config file and applies environment overrides. An
// empty path means environment only.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, loaded)
	}
	cfg = applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file %q as YAML: %w", absPath, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file %q as JSON: %w", absPath, err)
		}
	}
	return cfg, nil
}

func merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.RegistryURL); s != "" {
		out.RegistryURL = s
	}
	if s := strings.TrimSpace(over.RegistryToken); s != "" {
		out.RegistryToken = s
	}
	if s := strings.TrimSpace(over.PaymentURL); s != "" {
		out.PaymentURL = s
	}
	if s := strings.TrimSpace(over.PaymentToken); s != "" {
		out.PaymentToken = s
	}
	if s := strings.TrimSpace(over.APIAddr); s != "" {
		out.APIAddr = s
	}
	if s := strings.TrimSpace(over.APIToken); s != "" {
		out.APIToken = s
	}
	if over.AllowLocalNoAuth {
		out.AllowLocalNoAuth = true
	}
	if over.PreviewLimit > 0 {
		out.PreviewLimit = over.PreviewLimit
	}
	if over.HTTPTimeoutSeconds > 0 {
		out.HTTPTimeoutSeconds = over.HTTPTimeoutSeconds
	}
	if s := strings.TrimSpace(over.EventDBPath); s != "" {
		out.EventDBPath = s
	}
	if s := strings.TrimSpace(over.RedisAddr); s != "" {
		out.RedisAddr = s
	}
	if s := strings.TrimSpace(over.RedisStream); s != "" {
		out.RedisStream = s
	}
	if s := strings.TrimSpace(over.RedisPassword); s != "" {
		out.RedisPassword = s
	}
	if over.RedisDB != 0 {
		out.RedisDB = over.RedisDB
	}
	if over.TracingEnabled {
		out.TracingEnabled = true
	}
	return out
}

func applyEnv(cfg Config) Config {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.RegistryURL, "MASUMI_REGISTRY_BASE_URL")
	setString(&cfg.RegistryToken, "MASUMI_REGISTRY_TOKEN")
	setString(&cfg.PaymentURL, "MASUMI_PAYMENT_BASE_URL")
	setString(&cfg.PaymentToken, "MASUMI_PAYMENT_TOKEN")
	setString(&cfg.APIAddr, "MASUMI_GATEWAY_ADDR")
	setString(&cfg.APIToken, "MASUMI_GATEWAY_TOKEN")
	setString(&cfg.EventDBPath, "MASUMI_EVENT_DB_PATH")
	setString(&cfg.RedisAddr, "MASUMI_REDIS_ADDR")
	setString(&cfg.RedisStream, "MASUMI_REDIS_STREAM")
	setString(&cfg.RedisPassword, "MASUMI_REDIS_PASSWORD")

	cfg.PreviewLimit = config.ParseIntEnv("MASUMI_PREVIEW_LIMIT", cfg.PreviewLimit)
	cfg.HTTPTimeoutSeconds = config.ParseIntEnv("MASUMI_HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.RedisDB = config.ParseIntEnv("MASUMI_REDIS_DB", cfg.RedisDB)
	cfg.AllowLocalNoAuth = config.ParseBoolEnv("MASUMI_ALLOW_LOCAL_NO_AUTH", cfg.AllowLocalNoAuth)
	cfg.TracingEnabled = config.ParseBoolEnv("MASUMI_TRACING_ENABLED", cfg.TracingEnabled)
	return cfg
}

// Validate checks what cannot be defaulted. Tokens are required because both
// Masumi services reject unauthenticated calls.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RegistryURL) == "" {
		return fmt.Errorf("registry url is required")
	}
	if strings.TrimSpace(c.RegistryToken) == "" {
		return fmt.Errorf("registry token is required (set MASUMI_REGISTRY_TOKEN)")
	}
	if strings.TrimSpace(c.PaymentURL) == "" {
		return fmt.Errorf("payment url is required")
	}
	if strings.TrimSpace(c.PaymentToken) == "" {
		return fmt.Errorf("payment token is required (set MASUMI_PAYMENT_TOKEN)")
	}
	return nil
}
