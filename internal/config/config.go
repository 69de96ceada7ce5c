// Package config loads server settings from defaults, an optional YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "TASKER"

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai"`
	Undo   UndoConfig   `mapstructure:"undo" yaml:"undo"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr" yaml:"addr"`
	StaticDir    string   `mapstructure:"static_dir" yaml:"static_dir"`
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Model   string        `mapstructure:"model" yaml:"model"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// PromptFile replaces the built-in translator prompt when set.
	PromptFile string `mapstructure:"prompt_file" yaml:"prompt_file"`
}

type UndoConfig struct {
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	PurgeInterval time.Duration `mapstructure:"purge_interval" yaml:"purge_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:5000",
			AllowOrigins: []string{"*"},
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
			Timeout: 30 * time.Second,
		},
		Undo: UndoConfig{
			TTL:           5 * time.Minute,
			PurgeInterval: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

type LoadOptions struct {
	// File is an optional YAML config file. A missing file is an error when
	// set explicitly.
	File string
	// EnvFile is loaded into the process environment before reading it.
	// Missing .env files are ignored.
	EnvFile string
}

// Load resolves the effective configuration.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// TASKER_OPENAI_* takes precedence over the unprefixed names
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.model", EnvPrefix+"_OPENAI_MODEL", "OPENAI_MODEL")
	_ = v.BindEnv("openai.base_url", EnvPrefix+"_OPENAI_BASE_URL", "OPENAI_BASE_URL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.AllowOrigins = splitOrigins(cfg.Server.AllowOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.timeout", d.OpenAI.Timeout)
	v.SetDefault("openai.prompt_file", "")
	v.SetDefault("undo.ttl", d.Undo.TTL)
	v.SetDefault("undo.purge_interval", d.Undo.PurgeInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// splitOrigins accepts a comma-separated env value as well as a YAML list.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Undo.TTL <= 0 {
		return fmt.Errorf("undo.ttl must be positive, got %s", c.Undo.TTL)
	}
	if c.Undo.PurgeInterval <= 0 {
		return fmt.Errorf("undo.purge_interval must be positive, got %s", c.Undo.PurgeInterval)
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive, got %s", c.OpenAI.Timeout)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = "<redacted>"
	}
	c.Server.AllowOrigins = append([]string(nil), c.Server.AllowOrigins...)
	return c
}
