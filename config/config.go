package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research pipeline service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Email     EmailConfig     `mapstructure:"email"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the OpenAI provider configuration
type LLMConfig struct {
	APIKey      string           `mapstructure:"api_key"`
	BaseURL     string           `mapstructure:"base_url"`
	Temperature float64          `mapstructure:"temperature"`
	MaxTokens   int              `mapstructure:"max_tokens"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	Routing     LLMRoutingConfig `mapstructure:"routing"`
}

// LLMRoutingConfig defines which model serves each agent role
type LLMRoutingConfig struct {
	Clarifier string `mapstructure:"clarifier"`
	Planner   string `mapstructure:"planner"`
	Searcher  string `mapstructure:"searcher"`
	Writer    string `mapstructure:"writer"`
	Delivery  string `mapstructure:"delivery"`
	Fallback  string `mapstructure:"fallback"`
}

// Model returns the model routed for role, falling back when unset.
func (r LLMRoutingConfig) Model(role string) string {
	var m string
	switch role {
	case "clarifier":
		m = r.Clarifier
	case "planner":
		m = r.Planner
	case "searcher":
		m = r.Searcher
	case "writer":
		m = r.Writer
	case "delivery":
		m = r.Delivery
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if l.Routing.Fallback == "" {
		return fmt.Errorf("llm.routing.fallback is required")
	}
	return nil
}

// ResearchConfig contains pipeline behaviour settings
type ResearchConfig struct {
	NumSearches         int `mapstructure:"num_searches"`
	MaxConcurrentSearch int `mapstructure:"max_concurrent_searches"`
	NumClarifyQuestions int `mapstructure:"num_clarify_questions"`
}

func (r ResearchConfig) Validate() error {
	if r.NumSearches <= 0 {
		return fmt.Errorf("research.num_searches must be > 0")
	}
	if r.NumClarifyQuestions <= 0 {
		return fmt.Errorf("research.num_clarify_questions must be > 0")
	}
	return nil
}

// RateLimitConfig contains per-caller admission control settings
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	DailyLimit        int `mapstructure:"daily_limit"`
}

func (r RateLimitConfig) Validate() error {
	if r.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be > 0")
	}
	if r.DailyLimit <= 0 {
		return fmt.Errorf("rate_limit.daily_limit must be > 0")
	}
	return nil
}

// EmailConfig contains report delivery settings (AWS SES)
type EmailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Sender  string `mapstructure:"sender"`
}

func (e EmailConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	if strings.TrimSpace(e.Region) == "" {
		return fmt.Errorf("email.region required when email is enabled")
	}
	if strings.TrimSpace(e.Sender) == "" {
		return fmt.Errorf("email.sender required when email is enabled")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10002")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", time.Minute)
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")
	viper.SetDefault("research.num_searches", 3)
	viper.SetDefault("research.max_concurrent_searches", 0)
	viper.SetDefault("research.num_clarify_questions", 3)
	viper.SetDefault("rate_limit.requests_per_minute", 2)
	viper.SetDefault("rate_limit.daily_limit", 2)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (DEEPRESEARCH_*)

	if err := viper.ReadInConfig(); err != nil {
		// Env and defaults can carry the whole config; only a malformed file is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	if err := config.RateLimit.Validate(); err != nil {
		panic(err)
	}
	if err := config.Email.Validate(); err != nil {
		panic(err)
	}
	return &config
}
