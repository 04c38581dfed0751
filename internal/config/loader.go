// Package config loads the steerd configuration file. Zero values mean
// "unspecified"; Defaults fills them and command-line flags override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"steerd/internal/engine"
)

// Backends.
const (
	BackendLlama = "llama"
	BackendToy   = "toy"
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	Backend      string `json:"backend" yaml:"backend" toml:"backend"`

	ContextSize  int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads      int    `json:"threads" yaml:"threads" toml:"threads"`
	Seed         uint32 `json:"seed" yaml:"seed" toml:"seed"`
	Template     string `json:"template" yaml:"template" toml:"template"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	UserSuffix   string `json:"user_suffix" yaml:"user_suffix" toml:"user_suffix"`
	GPULayers    int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`

	VRAMBudgetMB   int `json:"vram_budget_mb" yaml:"vram_budget_mb" toml:"vram_budget_mb"`
	VRAMMarginMB   int `json:"vram_margin_mb" yaml:"vram_margin_mb" toml:"vram_margin_mb"`
	MaxQueueDepth  int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS      int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	DrainTimeoutMS int `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`

	StateDir string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	PromptTimeoutSec   int64    `json:"prompt_timeout_seconds" yaml:"prompt_timeout_seconds" toml:"prompt_timeout_seconds"`
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values no default can repair.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendLlama, BackendToy:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.ContextSize < 0 || c.Threads < 0 || c.MaxQueueDepth < 0 || c.MaxWaitMS < 0 || c.DrainTimeoutMS < 0 {
		return fmt.Errorf("negative sizes and durations are not allowed")
	}
	if c.VRAMBudgetMB > 0 && c.VRAMMarginMB >= c.VRAMBudgetMB {
		return fmt.Errorf("vram margin %d must be below budget %d", c.VRAMMarginMB, c.VRAMBudgetMB)
	}
	return nil
}

// Defaults returns c with unspecified fields filled.
func (c Config) Defaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ModelsDir == "" {
		c.ModelsDir = "~/models/llm"
	}
	if c.Backend == "" {
		c.Backend = BackendLlama
	}
	if c.ContextSize == 0 {
		c.ContextSize = engine.DefaultContextSize
	}
	if c.Threads == 0 {
		c.Threads = engine.DefaultThreads()
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = 32
	}
	if c.MaxWaitMS == 0 {
		c.MaxWaitMS = 30_000
	}
	if c.DrainTimeoutMS == 0 {
		c.DrainTimeoutMS = 5_000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	return c
}

func (c Config) MaxWait() time.Duration      { return time.Duration(c.MaxWaitMS) * time.Millisecond }
func (c Config) DrainTimeout() time.Duration { return time.Duration(c.DrainTimeoutMS) * time.Millisecond }

// Params are the engine parameters for new sessions.
func (c Config) Params() engine.Params {
	return engine.Params{
		ContextSize:  c.ContextSize,
		Threads:      c.Threads,
		BatchThreads: c.Threads,
		Seed:         c.Seed,
		Template:     c.Template,
	}
}
