package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Research  ResearchConfig  `yaml:"research"`
	LLM       LLMConfig       `yaml:"llm"`
	Tools     ToolsConfig     `yaml:"tools"`
	Validator ValidatorConfig `yaml:"validator"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// ResearchConfig holds conversation engine settings.
type ResearchConfig struct {
	MaxSteps     int           `yaml:"max_steps"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
	OutputFile   string        `yaml:"output_file"`
}

// ValidatorConfig holds claim validation settings.
type ValidatorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxRounds     int           `yaml:"max_rounds"`
	MaxSteps      int           `yaml:"max_steps"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
// Type is "openai" (any OpenAI-compatible endpoint, including local inference
// servers that accept a placeholder API key) or "azure" (Azure OpenAI
// deployments, which authenticate with an api-key header and version the API
// via query parameter).
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	APIVersion  string        `yaml:"api_version,omitempty"` // azure only
	Temperature float64       `yaml:"temperature,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// ToolsConfig holds tool system settings.
type ToolsConfig struct {
	SearchBackend  string        `yaml:"search_backend"` // "duckduckgo" | "searxng"
	SearXNGURL     string        `yaml:"searxng_url"`
	SearchCacheTTL time.Duration `yaml:"search_cache_ttl"`

	CrawlTimeout  time.Duration `yaml:"crawl_timeout"`
	CrawlMaxChars int           `yaml:"crawl_max_chars"`
	UserAgent     string        `yaml:"user_agent"`

	WikipediaEnabled  bool   `yaml:"wikipedia_enabled"`
	WikipediaLanguage string `yaml:"wikipedia_language"`

	WolframEnabled bool          `yaml:"wolfram_enabled"`
	WolframAppID   string        `yaml:"wolfram_app_id"`
	WolframTimeout time.Duration `yaml:"wolfram_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults. A local OpenAI-compatible
// inference server is assumed when nothing else is configured; such servers
// accept a placeholder credential.
func Defaults() *Config {
	return &Config{
		Research: ResearchConfig{
			MaxSteps:     10,
			Timeout:      300 * time.Second,
			SystemPrompt: defaultResearchPrompt,
			OutputFile:   "research_report.md",
		},
		LLM: LLMConfig{
			DefaultProvider: "lmstudio",
			Providers: []ProviderConfig{
				{
					Name:        "lmstudio",
					Type:        "openai",
					BaseURL:     "http://localhost:1234/v1",
					APIKey:      "not-needed",
					Model:       "qwen2.5-14b-instruct",
					Temperature: 0.7,
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Tools: ToolsConfig{
			SearchBackend:     "duckduckgo",
			SearchCacheTTL:    15 * time.Minute,
			CrawlTimeout:      10 * time.Second,
			CrawlMaxChars:     5000,
			UserAgent:         "sleuth-research-bot/1.0",
			WikipediaEnabled:  true,
			WikipediaLanguage: "en",
			WolframTimeout:    30 * time.Second,
		},
		Validator: ValidatorConfig{
			Enabled:       true,
			MaxRounds:     3,
			MaxSteps:      8,
			MaxConcurrent: 3,
			Timeout:       120 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

const defaultResearchPrompt = `You are an expert research analyst and writer.

Research workflow:

1. Search and crawl as needed
2. Extract key claims from findings
3. Validate all claims with the fact_check tool
4. For LOW confidence claims, search more and revalidate
5. Present validated findings with confidence levels

Write a complete markdown report with Executive Summary, Introduction,
Main Findings, Key Insights, and Sources sections. Cite sources when
relevant. Be direct and to the point.`

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file is not an error; defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := decryptSecrets(cfg); err != nil {
				return nil, err
			}
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := decryptSecrets(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps SLEUTH_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLEUTH_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("SLEUTH_LLM_BASE_URL"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
				cfg.LLM.Providers[i].BaseURL = v
			}
		}
	}
	if v := os.Getenv("SLEUTH_LLM_API_KEY"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
				cfg.LLM.Providers[i].APIKey = v
			}
		}
	}
	if v := os.Getenv("SLEUTH_LLM_MODEL"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
				cfg.LLM.Providers[i].Model = v
			}
		}
	}
	if v := os.Getenv("SLEUTH_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("SLEUTH_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("SLEUTH_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("SLEUTH_RESEARCH_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Research.MaxSteps = n
		}
	}
	if v := os.Getenv("SLEUTH_TOOLS_SEARCH_BACKEND"); v != "" {
		cfg.Tools.SearchBackend = v
	}
	if v := os.Getenv("SLEUTH_TOOLS_SEARXNG_URL"); v != "" {
		cfg.Tools.SearXNGURL = v
	}
	if v := os.Getenv("SLEUTH_TOOLS_WIKIPEDIA_LANGUAGE"); v != "" {
		cfg.Tools.WikipediaLanguage = v
	}
	if v := os.Getenv("SLEUTH_TOOLS_WOLFRAM_ENABLED"); v == "true" {
		cfg.Tools.WolframEnabled = true
	}
	if v := os.Getenv("WOLFRAM_ALPHA_APPID"); v != "" {
		cfg.Tools.WolframAppID = v
	}
	if v := os.Getenv("SLEUTH_VALIDATOR_ENABLED"); v == "false" {
		cfg.Validator.Enabled = false
	}
	if v := os.Getenv("SLEUTH_VALIDATOR_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Validator.MaxRounds = n
		}
	}
}

// decryptSecrets resolves "enc:" prefixed credentials using the passphrase
// from SLEUTH_CONFIG_KEY. Leaving encrypted values in place without a
// passphrase is a configuration error surfaced by Validate.
func decryptSecrets(cfg *Config) error {
	passphrase := os.Getenv("SLEUTH_CONFIG_KEY")

	decrypt := func(field *string, name string) error {
		if !strings.HasPrefix(*field, "enc:") {
			return nil
		}
		if passphrase == "" {
			return fmt.Errorf("%s is encrypted but SLEUTH_CONFIG_KEY is not set", name)
		}
		plain, err := DecryptValue(strings.TrimPrefix(*field, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", name, err)
		}
		*field = plain
		return nil
	}

	for i := range cfg.LLM.Providers {
		if err := decrypt(&cfg.LLM.Providers[i].APIKey, "llm api_key"); err != nil {
			return err
		}
	}
	return decrypt(&cfg.Tools.WolframAppID, "wolfram app_id")
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
