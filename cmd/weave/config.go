package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration consumed by `weave run`.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	Remote RemoteConfig `yaml:"remote"`
	Store  StoreConfig  `yaml:"store"`
}

// AgentConfig selects the model and run limits.
type AgentConfig struct {
	// ID identifies the agent in lifecycle events.
	ID string `yaml:"id"`

	// Model is provider-qualified, e.g. "openai/gpt-4o-mini",
	// "anthropic/claude-3-5-sonnet-20241022", "google/gemini-2.0-flash".
	// Empty or "mock" runs without a provider. API keys come from the
	// environment (OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY).
	Model string `yaml:"model"`

	// StepLimit bounds node executions per run. Zero keeps the default.
	StepLimit int `yaml:"stepLimit"`
}

// RemoteConfig controls the event-stream server.
type RemoteConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Host                   string        `yaml:"host"`
	Port                   int           `yaml:"port"`
	AwaitInitialConnection bool          `yaml:"awaitInitialConnection"`
	AwaitTimeout           time.Duration `yaml:"awaitTimeout"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	// Driver is "memory", "sqlite", or "mysql". Empty disables
	// checkpointing.
	Driver string `yaml:"driver"`

	// DSN is the SQLite file path or the MySQL data source name.
	DSN string `yaml:"dsn"`
}

func defaultConfig() Config {
	return Config{
		Agent: AgentConfig{ID: "weave"},
		Remote: RemoteConfig{
			Host:         "127.0.0.1",
			Port:         8585,
			AwaitTimeout: 5 * time.Second,
		},
	}
}

// loadConfig reads the YAML file over the defaults. An empty path returns
// the defaults unchanged.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
