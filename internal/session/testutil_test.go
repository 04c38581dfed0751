package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"steerd/internal/engine"
	"steerd/internal/engine/toy"
	"steerd/internal/steering"
)

const corpus = `The dog ran to the park and the dog sat down.
The cat slept on the mat while the dog barked.
I'm doing well today.
Birds sing in the morning and fly south in winter.<|eos|>
`

func writeCorpus(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(p, []byte(corpus), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return p
}

// newSession creates a toy-backed session closed on test cleanup.
func newSession(t *testing.T, loader engine.Loader, seed uint32, opts ...Option) *Session {
	t.Helper()
	s, err := Create(loader, writeCorpus(t), engine.Params{Seed: seed, ContextSize: 8192}, opts...)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
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

// forceThenAccept forces text on the first sample, accepts the next one and
// completes.
func forceThenAccept(text string) steering.DecisionFunc {
	n := 0
	return func(s steering.TokenSample) steering.Directive {
		n++
		switch {
		case n == 1:
			return steering.Force(text)
		case n == 2 && !s.EOS:
			return steering.Accept(s)
		default:
			return steering.Complete()
		}
	}
}

func completeNow(steering.TokenSample) steering.Directive { return steering.Complete() }

func longPriming(words int) string {
	var b strings.Builder
	b.WriteString("Remember these facts.")
	for i := 0; i < words; i++ {
		b.WriteString(" the dog ran to the park")
	}
	return b.String()
}

// guardLoader wraps toy engines so overlapping calls are detected.
type guardLoader struct {
	toy.Loader
	active  *atomic.Int32
	overlap *atomic.Bool
}

func (l guardLoader) Load(path string, p engine.Params) (engine.Engine, error) {
	e, err := l.Loader.Load(path, p)
	if err != nil {
		return nil, err
	}
	return guardEngine{Engine: e, active: l.active, overlap: l.overlap}, nil
}

type guardEngine struct {
	engine.Engine
	active  *atomic.Int32
	overlap *atomic.Bool
}

func (g guardEngine) enter() func() {
	if g.active.Add(1) > 1 {
		g.overlap.Store(true)
	}
	return func() { g.active.Add(-1) }
}

func (g guardEngine) Decode(b engine.Batch) error {
	defer g.enter()()
	time.Sleep(50 * time.Microsecond)
	return g.Engine.Decode(b)
}

func (g guardEngine) Sample() (engine.Sample, error) {
	defer g.enter()()
	return g.Engine.Sample()
}

func (g guardEngine) Clear() error {
	defer g.enter()()
	return g.Engine.Clear()
}
