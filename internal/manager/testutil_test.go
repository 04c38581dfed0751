package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"steerd/internal/engine"
	"steerd/internal/engine/toy"
	"steerd/internal/registry"
	"steerd/internal/steering"
)

const corpus = `The dog ran to the park and the dog sat down.
The cat slept on the mat while the dog barked.
I'm doing well today.
Birds sing in the morning and fly south in winter.<|eos|>
`

// modelDir writes one toy corpus per name and returns the directory.
func modelDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(corpus), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	return dir
}

// newManager builds a toy-backed manager over the corpora in dir and
// closes it on cleanup.
func newManager(t *testing.T, dir string, cfg Config) *Manager {
	t.Helper()
	reg, err := registry.NewScanner(".txt").Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	cfg.Registry = reg
	cfg.Backend = "toy"
	if cfg.Loader == nil {
		cfg.Loader = toy.Loader{}
	}
	if cfg.Params.ContextSize == 0 {
		cfg.Params = engine.Params{ContextSize: 4096, Seed: 11}
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func acceptUpTo(n int) steering.DecisionFunc {
	count := 0
	return func(s steering.TokenSample) steering.Directive {
		count++
		if s.EOS || count > n {
			return steering.Complete()
		}
		return steering.Accept(s)
	}
}

// blockOnFirst parks the first decision until unblock is closed, signalling
// started once it holds the session.
func blockOnFirst(started chan<- struct{}, unblock <-chan struct{}) steering.DecisionFunc {
	first := true
	return func(steering.TokenSample) steering.Directive {
		if first {
			first = false
			close(started)
			<-unblock
		}
		return steering.Complete()
	}
}

// holdSession runs a blocked prompt on id in the background. The returned
// func unblocks it and waits for it to finish.
func holdSession(t *testing.T, m *Manager, id string) func() {
	t.Helper()
	started, unblock := make(chan struct{}), make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.Prompt(context.Background(), id, "hi", blockOnFirst(started, unblock), nil)
		done <- err
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("blocked prompt never started")
	}
	return func() {
		close(unblock)
		if err := <-done; err != nil {
			t.Errorf("blocked prompt: %v", err)
		}
	}
}
