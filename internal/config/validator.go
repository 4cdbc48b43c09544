package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole config for startup-fatal mistakes
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateSessionBackend(cfg.Session); err != nil {
		return err
	}
	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		return err
	}
	if cfg.AI.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.AI.APIKey, cfg.AI.Provider); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSessionBackend checks the backend selection and its settings
func (v *Validator) ValidateSessionBackend(cfg SessionConfig) error {
	switch cfg.Backend {
	case "", "file":
		// file path is defaulted by the loader
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis backend requires session.redis.addr")
		}
	default:
		return fmt.Errorf("unknown session backend: %s (expected file or redis)", cfg.Backend)
	}

	if cfg.Timeout < 0 || cfg.Debounce < 0 || cfg.ReapAge < 0 || cfg.ReapInterval < 0 {
		return fmt.Errorf("session durations must not be negative")
	}

	return nil
}

// ValidatePort checks the HTTP listen port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", port)
	}
	return nil
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	default:
		return fmt.Errorf("unsupported provider: %s", provider)
	}

	return nil
}
