package toy

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"steerd/internal/engine"
)

const corpus = `The dog ran to the park and the dog sat down.
The cat slept on the mat while the dog barked.
Birds sing in the morning and birds fly south.<|eos|>
`

func writeCorpus(t *testing.T, text string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "toy.txt")
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return p
}

func load(t *testing.T, seed uint32) *Engine {
	t.Helper()
	e, err := Loader{}.Load(writeCorpus(t, corpus), engine.Params{Seed: seed, ContextSize: 512})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e.(*Engine)
}

func feed(t *testing.T, e *Engine, text string) {
	t.Helper()
	dst := make([]engine.Token, len(text)+2)
	n := e.Tokenize(text, false, dst)
	if n < 0 {
		t.Fatalf("tokenize: %d", n)
	}
	if err := e.Decode(engine.Batch{Tokens: dst[:n], Text: text}); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func generate(t *testing.T, e *Engine, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		s, err := e.Sample()
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if s.EOS {
			break
		}
		b.WriteString(s.Text)
		if err := e.Decode(engine.Batch{Tokens: []engine.Token{s.Token}, Text: s.Text}); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return b.String()
}

func TestSplit_RoundTrip(t *testing.T) {
	in := "<|im_start|>user\nI'm doing  fine, thanks!<|im_end|>\n"
	pieces := split(in)
	if got := strings.Join(pieces, ""); got != in {
		t.Fatalf("pieces do not concatenate back: %q", got)
	}
	want := []string{"<|im_start|>", "user", "\n", "I'm", " doing", "  fine", ",", " thanks", "!", "<|im_end|>", "\n"}
	if len(pieces) != len(want) {
		t.Fatalf("want %q, got %q", want, pieces)
	}
	for i := range want {
		if pieces[i] != want[i] {
			t.Fatalf("piece %d: want %q, got %q", i, want[i], pieces[i])
		}
	}
}

func TestTokenize_BufferTooSmall(t *testing.T) {
	e := load(t, 1)
	dst := make([]engine.Token, 2)
	if n := e.Tokenize("one two three", true, dst); n != -4 {
		t.Fatalf("want -4, got %d", n)
	}
	dst = make([]engine.Token, 4)
	if n := e.Tokenize("one two three", true, dst); n != 4 || dst[0] != bosToken {
		t.Fatalf("want 4 tokens with BOS, got %d %v", n, dst)
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Loader{}.Load(filepath.Join(t.TempDir(), "missing.txt"), engine.Params{})
	if !engine.IsModelLoadFailure(err) {
		t.Fatalf("want ModelLoadError, got %v", err)
	}
	_, err = Loader{}.Load(writeCorpus(t, corpus), engine.Params{ContextSize: maxContextSize + 1})
	if !engine.IsContextInitFailure(err) {
		t.Fatalf("want ContextInitError, got %v", err)
	}
}

func TestSample_DeterministicForSeed(t *testing.T) {
	a, b := load(t, 7), load(t, 7)
	feed(t, a, "The dog")
	feed(t, b, "The dog")
	ga, gb := generate(t, a, 30), generate(t, b, 30)
	if ga == "" || ga != gb {
		t.Fatalf("same seed diverged: %q vs %q", ga, gb)
	}
}

func TestSample_EmptyContextIsEOS(t *testing.T) {
	e := load(t, 1)
	s, err := e.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !s.EOS {
		t.Fatalf("want EOS from empty context, got %+v", s)
	}
}

func TestBanNext_ExcludesTokenOnce(t *testing.T) {
	e := load(t, 3)
	feed(t, e, "The cat slept on the")
	// " mat" and " park" and " morning" follow " the"; ban all but " park".
	ban := func(words ...string) []engine.Token {
		var out []engine.Token
		for _, w := range words {
			out = append(out, e.m.vocab[w])
		}
		return out
	}
	for i := 0; i < 10; i++ {
		e.BanNext(ban(" mat", " morning", " dog", " cat"))
		s, err := e.Sample()
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if s.Text != " park" {
			t.Fatalf("banned token sampled: %q", s.Text)
		}
	}
	if len(e.banned) != 0 {
		t.Fatalf("ban must not outlive one sample")
	}
}

func TestRewindAndClear(t *testing.T) {
	e := load(t, 1)
	feed(t, e, "The dog ran bad")
	if err := e.Rewind(" bad"); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if got := e.History(); got != "The dog ran" {
		t.Fatalf("history after rewind: %q", got)
	}
	if err := e.Rewind("a b c d e f g h"); !engine.IsDecodeFailure(err) {
		t.Fatalf("want DecodeError rewinding past start, got %v", err)
	}
	if err := e.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := e.History(); got != "" {
		t.Fatalf("history after clear: %q", got)
	}
}

func TestRewind_TrimsRepeatWindow(t *testing.T) {
	e := load(t, 5)
	feed(t, e, "The dog ran the dog")
	if err := e.Rewind(" the dog"); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if !slices.Equal(e.recent, e.history) {
		t.Fatalf("repeat window %v still holds rewound tokens, history %v", e.recent, e.history)
	}

	fresh := load(t, 5)
	feed(t, fresh, "The dog ran")
	if a, b := generate(t, e, 10), generate(t, fresh, 10); a != b {
		t.Fatalf("rewound engine diverged from fresh one: %q vs %q", a, b)
	}
}

func TestDecode_ContextFull(t *testing.T) {
	e, err := Loader{}.Load(writeCorpus(t, corpus), engine.Params{Seed: 1, ContextSize: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer e.Close()
	dst := make([]engine.Token, 16)
	n := e.Tokenize("one two three four", false, dst)
	if err := e.Decode(engine.Batch{Tokens: dst[:n]}); !engine.IsDecodeFailure(err) {
		t.Fatalf("want DecodeError on overflow, got %v", err)
	}
}

func TestSaveLoadState_ReproducesContinuation(t *testing.T) {
	src := load(t, 11)
	feed(t, src, "The dog")
	blob, err := src.SaveState(true)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	orig := append([]byte(nil), blob...)
	want := generate(t, src, 20)

	dst := load(t, 99)
	if err := dst.LoadState(blob); err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(blob) != string(orig) {
		t.Fatalf("LoadState mutated the blob")
	}
	if got := generate(t, dst, 20); got != want {
		t.Fatalf("restored continuation differs:\nwant %q\n got %q", want, got)
	}
}

func TestLoadState_RejectsOtherModel(t *testing.T) {
	src := load(t, 1)
	feed(t, src, "The dog")
	blob, err := src.SaveState(false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	other, err := Loader{}.Load(writeCorpus(t, "completely different text\n"), engine.Params{Seed: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer other.Close()
	if err := other.LoadState(blob); !engine.IsDecodeFailure(err) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if err := other.LoadState([]byte("{")); !engine.IsDecodeFailure(err) {
		t.Fatalf("want DecodeError for garbage, got %v", err)
	}
}

func TestClose_ExactlyOnce(t *testing.T) {
	before := LiveHandles()
	e, err := Loader{}.Load(writeCorpus(t, corpus), engine.Params{Seed: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if LiveHandles() != before+1 {
		t.Fatalf("live handles not incremented")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.Close(); err == nil {
		t.Fatalf("second close must fail")
	}
	if LiveHandles() != before {
		t.Fatalf("live handles: want %d, got %d", before, LiveHandles())
	}
	if _, err := e.Sample(); !engine.IsDecodeFailure(err) {
		t.Fatalf("want DecodeError after close, got %v", err)
	}
}
