package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"steerd/internal/engine"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp\nvram_budget_mb: 123\nvram_margin_mb: 7\ndefault_model: m1\nbackend: toy\nseed: 42\nsystem_prompt: Be brief.\ncors_allowed_origins: [\"*\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || cfg.VRAMBudgetMB != 123 || cfg.VRAMMarginMB != 7 || cfg.DefaultModel != "m1" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Backend != BackendToy || cfg.Seed != 42 || cfg.SystemPrompt != "Be brief." || len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","vram_budget_mb":42,"vram_margin_mb":2,"default_model":"m2","context_size":2048,"max_wait_ms":250}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.VRAMBudgetMB != 42 || cfg.VRAMMarginMB != 2 || cfg.DefaultModel != "m2" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ContextSize != 2048 || cfg.MaxWait() != 250*time.Millisecond {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\nvram_budget_mb=9\nvram_margin_mb=1\ndefault_model=\"m3\"\nstate_dir=\"/s\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.VRAMBudgetMB != 9 || cfg.VRAMMarginMB != 1 || cfg.DefaultModel != "m3" || cfg.StateDir != "/s" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	malformed := map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "models_dir": }`,
		"bad.toml": "addr=:8080\nmodels_dir\n",
		"neg.yaml": "max_wait_ms: -5\n",
	}
	for name, body := range malformed {
		if _, err := Load(writeTempFile(t, d, name, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	bad := []Config{
		{Backend: "onnx"},
		{ContextSize: -1},
		{MaxWaitMS: -5},
		{VRAMBudgetMB: 100, VRAMMarginMB: 100},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, c)
		}
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config should be valid: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	c := Config{}.Defaults()
	if c.Addr != ":8080" || c.Backend != BackendLlama || c.ContextSize != engine.DefaultContextSize {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Threads != engine.DefaultThreads() || c.MaxQueueDepth != 32 || c.DrainTimeout() != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	c = Config{Addr: ":1", Threads: 3, Seed: 9}.Defaults()
	if c.Addr != ":1" || c.Threads != 3 {
		t.Fatalf("explicit values overwritten: %+v", c)
	}
	p := c.Params()
	if p.Threads != 3 || p.BatchThreads != 3 || p.Seed != 9 {
		t.Fatalf("params: %+v", p)
	}
}
