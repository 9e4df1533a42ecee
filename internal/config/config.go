package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Transport string         `mapstructure:"transport"`
	OpenAI    OpenAIConfig   `mapstructure:"openai"`
	Maps      MapsConfig     `mapstructure:"maps"`
	Snapshot  SnapshotConfig `mapstructure:"snapshot"`
	Serve     ServeConfig    `mapstructure:"serve"`
	EventLog  EventLogConfig `mapstructure:"eventlog"`
}

// OpenAIConfig configures the realtime model connection
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Voice      string `mapstructure:"voice"`
	BaseURL    string `mapstructure:"base_url"`    // REST base for minting ephemeral credentials
	RealtimeWS string `mapstructure:"realtime_ws"` // websocket transport endpoint
	SignalURL  string `mapstructure:"signal_url"`  // webrtc signaling endpoint
	SessionURL string `mapstructure:"session_url"` // local credential proxy
}

// MapsConfig configures static map rendering
type MapsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Scale   int    `mapstructure:"scale"`
	MapType string `mapstructure:"maptype"`
}

// SnapshotConfig configures the viewport capturer
type SnapshotConfig struct {
	Strategy string        `mapstructure:"strategy"` // "interval" or "idle"
	Interval time.Duration `mapstructure:"interval"`
	Debounce time.Duration `mapstructure:"debounce"`
	History  int           `mapstructure:"history"`
}

// ServeConfig configures the credential proxy / static asset server
type ServeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// EventLogConfig configures the observability event log
type EventLogConfig struct {
	MaxEntries int  `mapstructure:"max_entries"`
	Archive    bool `mapstructure:"archive"` // mirror events into the local SQLite archive
}

func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("transport", "webrtc")
	viper.SetDefault("openai.model", "gpt-4o-realtime-preview")
	viper.SetDefault("openai.voice", "verse")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.signal_url", "https://api.openai.com/v1/realtime")
	viper.SetDefault("openai.realtime_ws", "wss://api.openai.com/v1/realtime")
	viper.SetDefault("snapshot.strategy", "interval")
	viper.SetDefault("snapshot.interval", 15*time.Second)
	viper.SetDefault("snapshot.debounce", 350*time.Millisecond)
	viper.SetDefault("snapshot.history", 12)
	viper.SetDefault("maps.width", 640)
	viper.SetDefault("maps.height", 400)
	viper.SetDefault("maps.scale", 2)
	viper.SetDefault("maps.maptype", "roadmap")
	viper.SetDefault("serve.host", "127.0.0.1")
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("eventlog.max_entries", 500)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveCredentials(&cfg)

	if cfg.OpenAI.SessionURL == "" {
		cfg.OpenAI.SessionURL = fmt.Sprintf("http://%s:%d/session", cfg.Serve.Host, cfg.Serve.Port)
	}

	return &cfg, nil
}

// resolveCredentials fills API keys from config values or environment
// variables, with ${VAR} expansion.
func resolveCredentials(cfg *Config) {
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Maps.APIKey = expandEnv(cfg.Maps.APIKey)
	if cfg.Maps.APIKey == "" {
		cfg.Maps.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	}
	if model := os.Getenv("VOICEMAP_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if voice := os.Getenv("VOICEMAP_VOICE"); voice != "" {
		cfg.OpenAI.Voice = voice
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			cfg.Serve.Port = p
		}
	}
}

// ApplyOverrides applies transport and model overrides to the config.
func (c *Config) ApplyOverrides(transport, model string) {
	if transport != "" {
		c.Transport = transport
	}
	if model != "" {
		c.OpenAI.Model = model
	}
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for voicemap.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "voicemap"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "voicemap"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
