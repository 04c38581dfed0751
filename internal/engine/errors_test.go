package engine

import (
	"errors"
	"fmt"
	"runtime"
	"testing"
)

func TestErrorHelpers_MatchWrapped(t *testing.T) {
	base := errors.New("boom")
	cases := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"load", ModelLoadError{Path: "/m.gguf", Err: base}, IsModelLoadFailure},
		{"ctx", ContextInitError{Err: base}, IsContextInitFailure},
		{"format", FormatError{Code: -1}, IsFormatFailure},
		{"decode", DecodeError{Op: "sample", Err: base}, IsDecodeFailure},
		{"dep", ErrDependencyUnavailable("no llama"), IsDependencyUnavailable},
	}
	for _, c := range cases {
		wrapped := fmt.Errorf("outer: %w", c.err)
		if !c.is(wrapped) {
			t.Fatalf("%s: helper did not match wrapped error %v", c.name, wrapped)
		}
		if c.is(base) {
			t.Fatalf("%s: helper matched unrelated error", c.name)
		}
	}
	if !errors.Is(ModelLoadError{Path: "x", Err: base}, base) {
		t.Fatalf("ModelLoadError must unwrap to its cause")
	}
}

func TestFormatError_Message(t *testing.T) {
	if got := (FormatError{Code: -3}).Error(); got != "chat template failed: code -3" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (FormatError{Code: 2000, Limit: 1210}).Error(); got != "chat template output too large: 2000 > 1210 bytes" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDefaultThreads_Bounds(t *testing.T) {
	n := DefaultThreads()
	if n < 1 || n > 8 {
		t.Fatalf("threads out of range: %d", n)
	}
	if runtime.NumCPU() >= 10 && n != 8 {
		t.Fatalf("want 8 threads on a large host, got %d", n)
	}
}

func TestParams_WithDefaults(t *testing.T) {
	p := Params{}.WithDefaults()
	if p.ContextSize != DefaultContextSize || p.Template != DefaultTemplate {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if p.Threads != DefaultThreads() || p.BatchThreads != p.Threads {
		t.Fatalf("thread defaults not applied: %+v", p)
	}
	if p.Seed == 0 {
		t.Fatalf("seed must be resolved")
	}

	fixed := Params{ContextSize: 512, Threads: 2, BatchThreads: 3, Seed: 42, Template: "phi3"}.WithDefaults()
	if fixed != (Params{ContextSize: 512, Threads: 2, BatchThreads: 3, Seed: 42, Template: "phi3"}) {
		t.Fatalf("explicit values overwritten: %+v", fixed)
	}
}
