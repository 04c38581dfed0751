package engine

import (
	"math"
	"math/rand/v2"
	"runtime"
)

// Defaults applied by Params.WithDefaults when fields are unset.
const (
	DefaultContextSize = 4096
	DefaultTemplate    = "chatml"
	maxDefaultThreads  = 8
)

// Params configures context creation.
type Params struct {
	ContextSize  int
	Threads      int
	BatchThreads int
	// Seed 0 draws a fresh random seed for every context, so two sessions
	// primed identically do not sample identically. Only restoring a
	// captured state reproduces a previous continuation exactly.
	Seed uint32
	// Template names the chat template family (see chattmpl).
	Template string
}

// DefaultThreads sizes the engine thread pool from available CPUs, leaving
// two cores for other work.
func DefaultThreads() int {
	return max(1, min(maxDefaultThreads, runtime.NumCPU()-2))
}

// WithDefaults fills unset fields. The seed is resolved here, so the
// returned Params always carries the seed the context will use.
func (p Params) WithDefaults() Params {
	if p.ContextSize <= 0 {
		p.ContextSize = DefaultContextSize
	}
	if p.Threads <= 0 {
		p.Threads = DefaultThreads()
	}
	if p.BatchThreads <= 0 {
		p.BatchThreads = p.Threads
	}
	if p.Seed == 0 {
		p.Seed = RandomSeed()
	}
	if p.Template == "" {
		p.Template = DefaultTemplate
	}
	return p
}

// RandomSeed returns a non-zero seed.
func RandomSeed() uint32 {
	return rand.Uint32N(math.MaxUint32-1) + 1
}
