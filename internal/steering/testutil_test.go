package steering

import (
	"os"
	"path/filepath"
	"testing"

	"steerd/internal/engine"
	"steerd/internal/engine/toy"
	"steerd/internal/prompt"
)

const corpus = `The dog ran to the park and the dog sat down.
The cat slept on the mat while the dog barked.
I'm doing well today.
I'm doing fine, thanks.
Birds sing in the morning.<|eos|>
`

// newToy loads a toy engine over corpus and returns it with a formatter.
func newToy(t *testing.T, seed uint32) (engine.Engine, *prompt.Formatter) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(p, []byte(corpus), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	eng, err := toy.Loader{}.Load(p, engine.Params{Seed: seed, ContextSize: 2048})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng, prompt.New(eng)
}

// ask primes eng with a formatted user query, the way a session does before
// running the loop.
func ask(t *testing.T, eng engine.Engine, f *prompt.Formatter, query string) {
	t.Helper()
	toks, text, err := f.FormatAndTokenize(query)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if err := eng.Decode(engine.Batch{Tokens: toks, Text: text}); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// acceptUpTo accepts samples until EOS or n samples, then completes.
func acceptUpTo(n int) DecisionFunc {
	count := 0
	return func(s TokenSample) Directive {
		count++
		if s.EOS || count > n {
			return Complete()
		}
		return Accept(s)
	}
}
