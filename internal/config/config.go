package config

import (
	"time"
)

// Config represents the main chatrelay configuration
type Config struct {
	// Session store
	Session SessionConfig `json:"session" mapstructure:"session"`

	// HTTP front-ends
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Outbound messaging provider
	WhatsApp WhatsAppConfig `json:"whatsapp" mapstructure:"whatsapp"`

	// Completion provider
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Knowledge file for prompt grounding
	Knowledge KnowledgeConfig `json:"knowledge" mapstructure:"knowledge"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// SessionConfig selects and tunes the session store backend
type SessionConfig struct {
	Backend      string        `json:"backend" mapstructure:"backend"` // file, redis
	FilePath     string        `json:"file_path" mapstructure:"file_path"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	Debounce     time.Duration `json:"debounce" mapstructure:"debounce"`
	ReapAge      time.Duration `json:"reap_age" mapstructure:"reap_age"`
	ReapInterval time.Duration `json:"reap_interval" mapstructure:"reap_interval"`
	Redis        RedisConfig   `json:"redis" mapstructure:"redis"`
}

// RedisConfig holds the remote backend connection settings
type RedisConfig struct {
	Addr      string `json:"addr" mapstructure:"addr"`
	Password  string `json:"password" mapstructure:"password"`
	DB        int    `json:"db" mapstructure:"db"`
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `json:"host" mapstructure:"host"`
	Port        int    `json:"port" mapstructure:"port"`
	StaticDir   string `json:"static_dir" mapstructure:"static_dir"`
	VerifyToken string `json:"verify_token" mapstructure:"verify_token"`
}

// WhatsAppConfig holds the outbound delivery channel settings
type WhatsAppConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Token         string `json:"token" mapstructure:"token"`
	PhoneNumberID string `json:"phone_number_id" mapstructure:"phone_number_id"`
	APIBaseURL    string `json:"api_base_url" mapstructure:"api_base_url"`
	// NumberRewrites maps an inbound sender id to the outbound recipient id
	// when the provider stores a different canonical form of the number.
	NumberRewrites map[string]string `json:"number_rewrites" mapstructure:"number_rewrites"`
}

// AIConfig holds completion provider configuration
type AIConfig struct {
	Provider     string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey       string  `json:"api_key" mapstructure:"api_key"`
	Model        string  `json:"model" mapstructure:"model"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `json:"max_tokens" mapstructure:"max_tokens"`
	HistoryLimit int     `json:"history_limit" mapstructure:"history_limit"`
}

// KnowledgeConfig points at the grounding text served to the prompt
type KnowledgeConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Backend:      "file",
			Timeout:      4 * time.Hour,
			Debounce:     time.Second,
			ReapAge:      24 * time.Hour,
			ReapInterval: time.Hour,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "session:",
			},
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      3000,
			StaticDir: "public",
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL: "https://graph.facebook.com/v21.0",
		},
		AI: AIConfig{
			Provider:     "anthropic",
			Temperature:  0.1,
			MaxTokens:    500,
			HistoryLimit: 10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}
