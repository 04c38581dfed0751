package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"steerd/internal/config"
	"steerd/internal/engine/llamacpp"
	"steerd/internal/httpapi"
	"steerd/internal/manager"
	"steerd/internal/statestore"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address, e.g. :8080 (defaults STEERD_ADDR)")
	f.String("default-model", "", "Default model id when a request omits model")
	f.Int("vram-budget-mb", 0, "Memory budget in MB for all sessions (0=unlimited)")
	f.Int("vram-margin-mb", 0, "Reserved memory margin in MB to keep free")
	f.String("state-dir", "", "Directory for saved states (in-memory when empty)")
	return cmd
}

// applyServeFlags overrides cfg with the serve flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr, _ = f.GetString("addr")
	}
	if f.Changed("default-model") {
		cfg.DefaultModel, _ = f.GetString("default-model")
	}
	if f.Changed("vram-budget-mb") {
		cfg.VRAMBudgetMB, _ = f.GetInt("vram-budget-mb")
	}
	if f.Changed("vram-margin-mb") {
		cfg.VRAMMarginMB, _ = f.GetInt("vram-margin-mb")
	}
	if f.Changed("state-dir") {
		cfg.StateDir, _ = f.GetString("state-dir")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg)

	loader, scanner := backend(cfg)
	if cfg.Backend == config.BackendLlama && !llamacpp.Built {
		log.Warn().Msg("llama backend not built into this binary; session creation will fail (build with -tags=llama)")
	}
	reg, err := scanner.Scan(cfg.ModelsDir)
	if err != nil {
		return err
	}

	var states statestore.Store = statestore.NewMemory()
	if cfg.StateDir != "" {
		fs, err := statestore.NewFile(cfg.StateDir)
		if err != nil {
			return err
		}
		states = fs
	}

	mgr := manager.NewWithConfig(manager.Config{
		Registry:      reg,
		DefaultModel:  cfg.DefaultModel,
		Backend:       cfg.Backend,
		Loader:        loader,
		Params:        cfg.Params(),
		SystemPrompt:  cfg.SystemPrompt,
		UserSuffix:    cfg.UserSuffix,
		BudgetMB:      cfg.VRAMBudgetMB,
		MarginMB:      cfg.VRAMMarginMB,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       cfg.MaxWait(),
		DrainTimeout:  cfg.DrainTimeout(),
		States:        states,
		Publisher:     manager.LogPublisher{Log: log},
		Logger:        log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetPromptTimeoutSeconds(cfg.PromptTimeoutSec)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Str("backend", cfg.Backend).Int("models", len(reg)).Msg("steerd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		_ = mgr.Close()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Close(); err != nil {
		log.Error().Err(err).Msg("closing sessions")
	}
	log.Info().Msg("steerd stopped")
	return nil
}
