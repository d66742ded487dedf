// Package config loads the settings shared by the tool server and the
// agent client from an optional YAML file, a .env file and the environment.
package config

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding the optional YAML file path.
const FileEnv = "PEOPLEPOD_CONFIG"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
	LLM     LLMConfig     `yaml:"llm"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

type AgentConfig struct {
	ServerURL string `yaml:"server_url"`
	// ServerCommand, when set, starts the tool server as a child process and
	// talks to it over stdio instead of ServerURL.
	ServerCommand string `yaml:"server_command"`
	Verbose       bool   `yaml:"verbose"`
	MaxToolRounds int    `yaml:"max_tool_rounds"`
	// Instructions are appended to the system prompt.
	Instructions string `yaml:"instructions"`
}

type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8000",
			Backend:      "sqlite",
			DatabasePath: "demo.db",
		},
		Agent: AgentConfig{
			ServerURL:     "http://127.0.0.1:8000/sse",
			Verbose:       true,
			MaxToolRounds: 8,
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434/v1",
			APIKey:         "ollama",
			Model:          "llama3.2:3b",
			RequestTimeout: 120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// PEOPLEPOD_CONFIG, then the environment (after loading .env if present).
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, falling back to environment variables")
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("TOOLSERVER_ADDR", c.Server.Addr)
	c.Server.Backend = getEnv("STORE_BACKEND", c.Server.Backend)
	c.Server.DatabasePath = getEnv("SQLITE_PATH", c.Server.DatabasePath)
	c.Server.PostgresDSN = getEnv("POSTGRES_DSN", c.Server.PostgresDSN)

	c.Agent.ServerURL = getEnv("TOOLSERVER_URL", c.Agent.ServerURL)
	c.Agent.ServerCommand = getEnv("TOOLSERVER_COMMAND", c.Agent.ServerCommand)
	c.Agent.Instructions = getEnv("AGENT_INSTRUCTIONS", c.Agent.Instructions)

	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var err error
	if c.Agent.Verbose, err = getEnvBool("AGENT_VERBOSE", c.Agent.Verbose); err != nil {
		return err
	}
	if c.Tracing.Enabled, err = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("AGENT_MAX_TOOL_ROUNDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AGENT_MAX_TOOL_ROUNDS %q: %w", v, err)
		}
		c.Agent.MaxToolRounds = n
	}
	if v, ok := os.LookupEnv("LLM_REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LLM_REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.LLM.RequestTimeout = d
	}
	return nil
}

// Validate rejects settings neither process can run with.
func (c *Config) Validate() error {
	switch c.Server.Backend {
	case "sqlite":
	case "postgres":
		if c.Server.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Server.Backend)
	}
	if c.Agent.MaxToolRounds <= 0 {
		return fmt.Errorf("max tool rounds must be positive, got %d", c.Agent.MaxToolRounds)
	}
	if c.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("llm request timeout must be positive, got %s", c.LLM.RequestTimeout)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the process logger. It writes to w, which should be
// stderr for both binaries: stdout carries the stdio protocol and the REPL.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
