package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientType selects the transport used to reach an MCP server.
type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// Session backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Completion providers
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Search providers
const (
	SearchDuckDuckGo = "duckduckgo"
	SearchMCP        = "mcp"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	Server  ServerConfig
	Session SessionConfig
	Search  SearchConfig
	Log     LogConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider           string        `mapstructure:"provider"`
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	Model              string        `mapstructure:"model"`
	SystemPrompt       string        `mapstructure:"system_prompt"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	Temperature        float32       `mapstructure:"temperature"`
	Timeout            time.Duration `mapstructure:"timeout"`
	HistoryWindow      int           `mapstructure:"history_window"`
	ExcludeFailedTurns bool          `mapstructure:"exclude_failed_turns"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SessionConfig controls where sessions live and how long they stay valid.
type SessionConfig struct {
	Backend         string        `mapstructure:"backend"`
	Dir             string        `mapstructure:"dir"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	RedisURL        string        `mapstructure:"redis_url"`
	RedisPrefix     string        `mapstructure:"redis_prefix"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SearchConfig holds the web search configuration
type SearchConfig struct {
	Enabled    bool            `mapstructure:"enabled"`
	Provider   string          `mapstructure:"provider"`
	MaxResults int             `mapstructure:"max_results"`
	Timeout    time.Duration   `mapstructure:"timeout"`
	MCP        MCPServerConfig `mapstructure:"mcp"`
}

// MCPServerConfig describes an MCP server exposing a search tool.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Tool    string            `mapstructure:"tool"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.temperature", 0.6)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.history_window", 6)
	v.SetDefault("llm.exclude_failed_turns", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")

	v.SetDefault("session.backend", BackendFile)
	v.SetDefault("session.dir", "sessions")
	v.SetDefault("session.sqlite_path", "sessions.db")
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.redis_prefix", "leanchems:session:")
	v.SetDefault("session.timeout", "24h")
	v.SetDefault("session.cleanup_interval", "1h")

	v.SetDefault("search.enabled", false)
	v.SetDefault("search.provider", SearchDuckDuckGo)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("search.mcp.name", "")
	v.SetDefault("search.mcp.type", "")
	v.SetDefault("search.mcp.url", "")
	v.SetDefault("search.mcp.command", "")
	v.SetDefault("search.mcp.tool", "web_search")

	v.SetDefault("log.level", "info")
}

// Load loads the configuration from config.yaml in the working directory, or from
// the file named by CONFIG_PATH. Environment variables prefixed with LEANCHEMS_
// override file values, and OPENAI_API_KEY fills llm.api_key.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("leanchems")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "LEANCHEMS_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
