package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidator_SessionBackend(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		cfg       SessionConfig
		shouldErr bool
	}{
		{"file backend", SessionConfig{Backend: "file"}, false},
		{"empty defaults to file", SessionConfig{}, false},
		{"redis with addr", SessionConfig{Backend: "redis", Redis: RedisConfig{Addr: "localhost:6379"}}, false},
		{"redis without addr", SessionConfig{Backend: "redis"}, true},
		{"unknown backend", SessionConfig{Backend: "dynamo"}, true},
		{"negative duration", SessionConfig{Backend: "file", Timeout: -time.Hour}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSessionBackend(tt.cfg)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_Port(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(3000))
	assert.Error(t, v.ValidatePort(0))
	assert.Error(t, v.ValidatePort(70000))
}

func TestValidator_APIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		key       string
		provider  string
		shouldErr bool
	}{
		{"valid anthropic", "sk-ant-abc123", "anthropic", false},
		{"invalid anthropic", "sk-abc123", "anthropic", true},
		{"valid openai", "sk-abc123", "openai", false},
		{"invalid openai", "abc123", "openai", true},
		{"empty key", "", "anthropic", true},
		{"unknown provider", "key", "gemini", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	assert.NoError(t, v.Validate(cfg))

	cfg.Session.Backend = "nope"
	assert.Error(t, v.Validate(cfg))
}
