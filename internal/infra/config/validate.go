package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError when one or more problems are found, allowing callers to
// inspect all issues. A missing required credential fails here, before any
// conversation starts.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateResearch(cfg, ve)
	validateLLM(cfg, ve)
	validateTools(cfg, ve)
	validateValidator(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateResearch(cfg *Config, ve *ValidationError) {
	if cfg.Research.MaxSteps <= 0 {
		ve.Add("research.max_steps must be > 0")
	}
	if cfg.Research.Timeout <= 0 {
		ve.Add("research.timeout must be > 0")
	}
	if cfg.Research.SystemPrompt == "" {
		ve.Add("research.system_prompt must not be empty")
	}
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if len(cfg.LLM.Providers) == 0 {
		ve.Add("llm.providers must contain at least one provider")
		return
	}

	names := map[string]bool{}
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if names[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		names[p.Name] = true

		switch p.Type {
		case "openai", "azure":
		default:
			ve.Add("llm.providers[%d].type must be openai or azure, got %q", i, p.Type)
		}
		if p.BaseURL == "" {
			ve.Add("llm.providers[%d].base_url must not be empty", i)
		} else if _, err := url.Parse(p.BaseURL); err != nil {
			ve.Add("llm.providers[%d].base_url is not a valid URL: %v", i, err)
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d].model must not be empty", i)
		}
		if p.Type == "azure" && p.APIKey == "" {
			ve.Add("llm.providers[%d]: azure provider requires api_key", i)
		}
		if strings.HasPrefix(p.APIKey, "enc:") {
			ve.Add("llm.providers[%d].api_key is still encrypted", i)
		}
	}

	if cfg.LLM.DefaultProvider != "" && !names[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

func validateTools(cfg *Config, ve *ValidationError) {
	switch cfg.Tools.SearchBackend {
	case "duckduckgo", "searxng":
	default:
		ve.Add("tools.search_backend must be duckduckgo or searxng, got %q", cfg.Tools.SearchBackend)
	}
	if cfg.Tools.SearchBackend == "searxng" && cfg.Tools.SearXNGURL == "" {
		ve.Add("tools.searxng_url is required when search_backend is searxng")
	}
	if cfg.Tools.CrawlTimeout <= 0 {
		ve.Add("tools.crawl_timeout must be > 0")
	}
	if cfg.Tools.CrawlMaxChars <= 0 {
		ve.Add("tools.crawl_max_chars must be > 0")
	}
	if cfg.Tools.WikipediaEnabled && cfg.Tools.WikipediaLanguage == "" {
		ve.Add("tools.wikipedia_language is required when wikipedia is enabled")
	}
	if cfg.Tools.WolframEnabled {
		if cfg.Tools.WolframAppID == "" {
			ve.Add("tools.wolfram_app_id is required when wolfram is enabled (set WOLFRAM_ALPHA_APPID)")
		}
		if strings.HasPrefix(cfg.Tools.WolframAppID, "enc:") {
			ve.Add("tools.wolfram_app_id is still encrypted")
		}
		if cfg.Tools.WolframTimeout <= 0 {
			ve.Add("tools.wolfram_timeout must be > 0")
		}
	}
}

func validateValidator(cfg *Config, ve *ValidationError) {
	if !cfg.Validator.Enabled {
		return
	}
	if cfg.Validator.MaxRounds <= 0 {
		ve.Add("validator.max_rounds must be > 0")
	}
	if cfg.Validator.MaxSteps <= 0 {
		ve.Add("validator.max_steps must be > 0")
	}
	if cfg.Validator.MaxConcurrent <= 0 {
		ve.Add("validator.max_concurrent must be > 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		ve.Add("logger.level must be debug, info, warn, or error, got %q", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json", "":
	default:
		ve.Add("logger.format must be text or json, got %q", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter must be stdout or noop, got %q", cfg.Tracer.Exporter)
	}
}
