package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment. Precedence is
// environment over file over defaults; a missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".chatrelay", "chatrelay.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("CHATRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".chatrelay")
	}

	if cfg.Session.FilePath == "" {
		cfg.Session.FilePath = filepath.Join(cfg.DataDir, "sessions_db.json")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "chatrelay.log")
	}

	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = filepath.Join(cfg.DataDir, "knowledge.txt")
	}

	return cfg, nil
}

// setDefaults registers every leaf key with viper. Environment lookups only
// resolve keys viper knows about, so each overridable setting is listed here.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("session.backend", cfg.Session.Backend)
	v.SetDefault("session.file_path", cfg.Session.FilePath)
	v.SetDefault("session.timeout", cfg.Session.Timeout)
	v.SetDefault("session.debounce", cfg.Session.Debounce)
	v.SetDefault("session.reap_age", cfg.Session.ReapAge)
	v.SetDefault("session.reap_interval", cfg.Session.ReapInterval)
	v.SetDefault("session.redis.addr", cfg.Session.Redis.Addr)
	v.SetDefault("session.redis.password", cfg.Session.Redis.Password)
	v.SetDefault("session.redis.db", cfg.Session.Redis.DB)
	v.SetDefault("session.redis.key_prefix", cfg.Session.Redis.KeyPrefix)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.static_dir", cfg.Server.StaticDir)
	v.SetDefault("server.verify_token", cfg.Server.VerifyToken)
	v.SetDefault("whatsapp.enabled", cfg.WhatsApp.Enabled)
	v.SetDefault("whatsapp.token", cfg.WhatsApp.Token)
	v.SetDefault("whatsapp.phone_number_id", cfg.WhatsApp.PhoneNumberID)
	v.SetDefault("whatsapp.api_base_url", cfg.WhatsApp.APIBaseURL)
	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.temperature", cfg.AI.Temperature)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)
	v.SetDefault("ai.history_limit", cfg.AI.HistoryLimit)
	v.SetDefault("knowledge.path", cfg.Knowledge.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("data_dir", cfg.DataDir)
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".chatrelay", "chatrelay.json")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("session", cfg.Session)
	v.Set("server", cfg.Server)
	v.Set("whatsapp", cfg.WhatsApp)
	v.Set("ai", cfg.AI)
	v.Set("knowledge", cfg.Knowledge)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
