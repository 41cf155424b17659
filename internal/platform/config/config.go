package config

import (
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PROMPTGUARD_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	CORS       CORSConfig       `koanf:"cors"`
	Limits     LimitsConfig     `koanf:"limits"`
	Auth       AuthConfig       `koanf:"auth"`
	Database   DatabaseConfig   `koanf:"database"`
	Audit      AuditConfig      `koanf:"audit"`
	Stats      StatsConfig      `koanf:"stats"`
	OCR        OCRConfig        `koanf:"ocr"`
	Correction CorrectionConfig `koanf:"correction"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

type LimitsConfig struct {
	MaxPromptBytes int64 `koanf:"maxpromptbytes"`
	MaxImageBytes  int64 `koanf:"maximagebytes"`
}

type AuthConfig struct {
	Enabled bool      `koanf:"enabled"`
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey  string `koanf:"signingkey"`
	Issuer      string `koanf:"issuer"`
	ExpiryHours int    `koanf:"expiryhours"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int    `koanf:"maxconns"`
}

type AuditConfig struct {
	Enabled         bool   `koanf:"enabled"`
	FilePath        string `koanf:"filepath"`
	BufferSize      int    `koanf:"buffersize"`
	BatchSize       int    `koanf:"batchsize"`
	FlushIntervalMs int    `koanf:"flushintervalms"`
}

type StatsConfig struct {
	RedisURL      string `koanf:"redisurl"`
	RetentionDays int    `koanf:"retentiondays"`
}

type OCRConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Languages   string `koanf:"languages"`
	TimeoutSecs int    `koanf:"timeoutsecs"`
}

type CorrectionConfig struct {
	Enabled     bool   `koanf:"enabled"`
	APIKey      string `koanf:"apikey"`
	BaseURL     string `koanf:"baseurl"`
	Model       string `koanf:"model"`
	TimeoutSecs int    `koanf:"timeoutsecs"`
	MaxRetries  int    `koanf:"maxretries"`
}

// Load builds the configuration from defaults, optional YAML files, a
// .env file in the working directory, and PROMPTGUARD_* environment variables,
// later layers overriding earlier ones.
func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.host":            "0.0.0.0",
		"server.port":            8080,
		"log.level":              "info",
		"log.format":             "json",
		"limits.maxpromptbytes":  10 << 20,
		"limits.maximagebytes":   10 << 20,
		"auth.enabled":           false,
		"auth.devmode":           false,
		"auth.jwt.issuer":        "promptguard",
		"auth.jwt.expiryhours":   24,
		"database.maxconns":      10,
		"audit.enabled":          true,
		"audit.filepath":         "logs/validation.jsonl",
		"audit.buffersize":       1000,
		"audit.batchsize":        100,
		"audit.flushintervalms":  1000,
		"stats.retentiondays":    90,
		"ocr.enabled":            true,
		"ocr.languages":          "kor+eng",
		"ocr.timeoutsecs":        30,
		"correction.enabled":     false,
		"correction.baseurl":     "https://api-inference.huggingface.co",
		"correction.model":       "qwen2.5-7b",
		"correction.timeoutsecs": 60,
		"correction.maxretries":  2,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	// Environment variables override everything
	// PROMPTGUARD_SERVER_PORT -> server.port
	_ = k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// listKeys are read from the environment as comma-separated lists.
var listKeys = map[string]bool{
	"cors.origins": true,
}

func envValue(name, value string) (string, any) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, envPrefix)), "_", ".")
	if !listKeys[key] {
		return key, value
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
