// Package config loads the agentwright configuration from an optional YAML
// file and AGENTWRIGHT_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Reasoning providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderScripted  = "scripted"
)

type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Docs      DocsConfig      `mapstructure:"docs"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Workbench string          `mapstructure:"workbench"`
}

type StoreConfig struct {
	Kind  string      `mapstructure:"kind"`
	Dir   string      `mapstructure:"dir"`
	Redis RedisConfig `mapstructure:"redis"`

	// EncryptionKey is a base64 encoded AES-256 key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	MaskPII       bool   `mapstructure:"mask_pii"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`

	// LockTTL bounds how long a run stays locked after its holder crashed.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type ReasoningConfig struct {
	Provider        string  `mapstructure:"provider"`
	ReasonerModel   string  `mapstructure:"reasoner_model"`
	PrimaryModel    string  `mapstructure:"primary_model"`
	SmallModel      string  `mapstructure:"small_model"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	Burst           int     `mapstructure:"burst"`
}

type DocsConfig struct {
	Corpus string `mapstructure:"corpus"`

	// Embed ranks chunks semantically with the OpenAI embeddings API.
	Embed bool `mapstructure:"embed"`
}

type EngineConfig struct {
	MaxSteps     int `mapstructure:"max_steps"`
	MaxInputSize int `mapstructure:"max_input_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Kind: StoreFile,
			Dir:  ".agentwright/runs",
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Prefix:  "agentwright:run:",
				LockTTL: 30 * time.Second,
			},
		},
		Reasoning: ReasoningConfig{
			Provider: ProviderScripted,
			Burst:    1,
		},
		Engine: EngineConfig{
			MaxSteps:     32,
			MaxInputSize: 4096,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Workbench: "workbench",
	}
}

// envKeys maps environment variables onto dotted configuration keys.
var envKeys = map[string]string{
	"AGENTWRIGHT_STORE":          "store.kind",
	"AGENTWRIGHT_STORE_DIR":      "store.dir",
	"AGENTWRIGHT_REDIS_ADDR":     "store.redis.addr",
	"AGENTWRIGHT_REDIS_PASSWORD": "store.redis.password",
	"AGENTWRIGHT_REDIS_DB":       "store.redis.db",
	"AGENTWRIGHT_REDIS_PREFIX":   "store.redis.prefix",
	"AGENTWRIGHT_REDIS_TTL":      "store.redis.ttl",
	"AGENTWRIGHT_REDIS_LOCK_TTL": "store.redis.lock_ttl",
	"AGENTWRIGHT_ENCRYPTION_KEY": "store.encryption_key",
	"AGENTWRIGHT_MASK_PII":       "store.mask_pii",
	"AGENTWRIGHT_PROVIDER":       "reasoning.provider",
	"AGENTWRIGHT_REASONER_MODEL": "reasoning.reasoner_model",
	"AGENTWRIGHT_PRIMARY_MODEL":  "reasoning.primary_model",
	"AGENTWRIGHT_SMALL_MODEL":    "reasoning.small_model",
	"OPENAI_API_KEY":             "reasoning.openai_api_key",
	"ANTHROPIC_API_KEY":          "reasoning.anthropic_api_key",
	"AGENTWRIGHT_RATE_LIMIT":     "reasoning.rate_limit",
	"AGENTWRIGHT_DOCS":           "docs.corpus",
	"AGENTWRIGHT_DOCS_EMBED":     "docs.embed",
	"AGENTWRIGHT_MAX_STEPS":      "engine.max_steps",
	"AGENTWRIGHT_MAX_INPUT_SIZE": "engine.max_input_size",
	"AGENTWRIGHT_LOG_LEVEL":      "log.level",
	"AGENTWRIGHT_LOG_FORMAT":     "log.format",
	"AGENTWRIGHT_HTTP_ADDR":      "http.addr",
	"AGENTWRIGHT_WORKBENCH":      "workbench",
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if env := fromEnv(); len(env) > 0 {
		if err := decode(env, &cfg); err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(input map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func fromEnv() map[string]any {
	out := map[string]any{}
	for env, key := range envKeys {
		v, ok := os.LookupEnv(env)
		if !ok || v == "" {
			continue
		}
		setPath(out, strings.Split(key, "."), v)
	}
	return out
}

func setPath(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// Validate checks enumerations and limits.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Kind {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	switch c.Reasoning.Provider {
	case ProviderOpenAI:
		if c.Reasoning.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("openai provider needs OPENAI_API_KEY"))
		}
	case ProviderAnthropic:
		if c.Reasoning.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("anthropic provider needs ANTHROPIC_API_KEY"))
		}
	case ProviderScripted:
	default:
		errs = append(errs, fmt.Errorf("unknown reasoning provider %q", c.Reasoning.Provider))
	}
	if c.Docs.Embed && c.Reasoning.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("docs.embed needs OPENAI_API_KEY"))
	}
	if c.Store.Kind == StoreRedis && c.Store.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("store.redis.lock_ttl must be positive"))
	}
	if c.Engine.MaxSteps <= 0 {
		errs = append(errs, errors.New("engine.max_steps must be positive"))
	}
	if c.Engine.MaxInputSize <= 0 {
		errs = append(errs, errors.New("engine.max_input_size must be positive"))
	}
	if _, err := c.Store.Key(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Key decodes the encryption key. It returns nil when encryption is off.
func (s StoreConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
