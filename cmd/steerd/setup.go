package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"steerd/internal/config"
	"steerd/internal/engine"
	"steerd/internal/engine/llamacpp"
	"steerd/internal/engine/toy"
	"steerd/internal/logging"
	"steerd/internal/registry"
	"steerd/pkg/types"
)

// loadConfig reads --config when given, applies flag and environment
// overrides, then fills defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	flags := cmd.Flags()
	if path, _ := flags.GetString("config"); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if v := os.Getenv("STEERD_ADDR"); v != "" && cfg.Addr == "" {
		cfg.Addr = v
	}
	if v := os.Getenv("STEERD_LOG_LEVEL"); v != "" && cfg.LogLevel == "" {
		cfg.LogLevel = v
	}
	setString := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	setString("log-level", &cfg.LogLevel)
	setString("log-format", &cfg.LogFormat)
	setString("backend", &cfg.Backend)
	setString("models-dir", &cfg.ModelsDir)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg.Defaults(), nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

// backend returns the engine loader and the registry scanner for
// cfg.Backend. The toy backend reads plain-text corpora.
func backend(cfg config.Config) (engine.Loader, *registry.Scanner) {
	if cfg.Backend == config.BackendToy {
		return toy.Loader{}, registry.NewScanner(".txt")
	}
	return llamacpp.Loader{GPULayers: cfg.GPULayers}, registry.NewGGUFScanner()
}

// resolveModel accepts a model id from the registry or a path to a file.
func resolveModel(reg []types.Model, ref string) (types.Model, error) {
	for _, m := range reg {
		if m.ID == ref {
			return m, nil
		}
	}
	if ref != "" {
		if st, err := os.Stat(ref); err == nil && !st.IsDir() {
			return registry.Describe(ref), nil
		}
	}
	if ref == "" && len(reg) > 0 {
		return reg[0], nil
	}
	return types.Model{}, fmt.Errorf("model not found: %q", ref)
}
