//go:build llama

package llamacpp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
	json "github.com/goccy/go-json"

	"steerd/internal/chattmpl"
	"steerd/internal/engine"
)

// Built reports whether this binary links llama.cpp.
const Built = true

const stateVersion = 1

// Loader loads GGUF models through go-llama.cpp.
type Loader struct {
	// GPULayers is forwarded to the binding (0 keeps everything on CPU).
	GPULayers int
}

// Engine drives a go-llama.cpp model one token at a time.
//
// The binding has no token-level decode, so the engine keeps the context as
// a transcript and samples by predicting a single token from it. A prompt
// cache file makes each step reuse the evaluated prefix.
type Engine struct {
	l          *llama.LLama
	params     engine.Params
	dir        string
	cache      string
	transcript strings.Builder
	bos        int32
	step       int
	ban        string
}

// Load implements engine.Loader.
func (ld Loader) Load(modelPath string, p engine.Params) (engine.Engine, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, engine.ModelLoadError{Path: modelPath, Err: errors.New("model path is empty")}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, engine.ModelLoadError{Path: modelPath, Err: err}
	}
	p = p.WithDefaults()
	mo := []llama.ModelOption{
		llama.SetContext(p.ContextSize),
		llama.SetNBatch(512),
	}
	if ld.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(ld.GPULayers))
	}
	l, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, engine.ModelLoadError{Path: modelPath, Err: err}
	}
	dir, err := os.MkdirTemp("", "steerd-llama-*")
	if err != nil {
		l.Free()
		return nil, engine.ContextInitError{Err: err}
	}
	e := &Engine{l: l, params: p, dir: dir, cache: filepath.Join(dir, "prompt.cache"), bos: -1}
	// The binding always prepends BOS; learn its id from an empty string.
	if _, ids, err := l.TokenizeString(""); err == nil && len(ids) == 1 {
		e.bos = ids[0]
	}
	return e, nil
}

func (e *Engine) tokenize(text string) ([]int32, error) {
	_, ids, err := e.l.TokenizeString(text)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 && ids[0] == e.bos {
		ids = ids[1:]
	}
	return ids, nil
}

// Tokenize implements engine.Engine.
func (e *Engine) Tokenize(text string, addBOS bool, dst []engine.Token) int {
	ids, err := e.tokenize(text)
	if err != nil {
		return engine.TokenizeFailed
	}
	n := len(ids)
	if addBOS && e.bos >= 0 {
		n++
	}
	if n > len(dst) {
		return -n
	}
	i := 0
	if addBOS && e.bos >= 0 {
		dst[0] = engine.Token(e.bos)
		i = 1
	}
	for _, id := range ids {
		dst[i] = engine.Token(id)
		i++
	}
	return n
}

// ApplyChatTemplate implements engine.Engine.
func (e *Engine) ApplyChatTemplate(msgs []engine.Message, addAssistant bool, buf []byte) int {
	return chattmpl.Apply(e.params.Template, msgs, addAssistant, buf)
}

// ContextSize implements engine.Engine.
func (e *Engine) ContextSize() int { return e.params.ContextSize }

// Decode implements engine.Engine. Only the batch text is used.
func (e *Engine) Decode(b engine.Batch) error {
	if e.l == nil {
		return engine.DecodeError{Op: "decode", Err: errors.New("engine closed")}
	}
	e.transcript.WriteString(b.Text)
	return nil
}

// BanNext implements engine.Banner. The binding accepts a single logit bias
// entry, so only the first token is banned.
func (e *Engine) BanNext(tokens []engine.Token) {
	if len(tokens) > 0 {
		e.ban = strconv.Itoa(int(tokens[0])) + "-inf"
	}
}

// Sample implements engine.Engine.
func (e *Engine) Sample() (engine.Sample, error) {
	if e.l == nil {
		return engine.Sample{}, engine.DecodeError{Op: "sample", Err: errors.New("engine closed")}
	}
	var piece string
	got := false
	e.l.SetTokenCallback(func(tok string) bool {
		if got {
			return false
		}
		piece, got = tok, true
		return true
	})
	defer e.l.SetTokenCallback(nil)

	po := []llama.PredictOption{
		llama.SetTokens(1),
		llama.SetThreads(e.params.Threads),
		llama.SetTopK(llama.DefaultOptions.TopK),
		llama.SetTopP(llama.DefaultOptions.TopP),
		llama.SetTemperature(llama.DefaultOptions.Temperature),
		llama.SetPenalty(llama.DefaultOptions.Penalty),
		llama.SetSeed(int(e.params.Seed) + e.step),
		llama.SetPathPromptCache(e.cache),
		llama.EnablePromptCacheAll,
	}
	if e.ban != "" {
		po = append(po, llama.SetLogitBias(e.ban))
		e.ban = ""
	}
	e.step++
	if _, err := e.l.Predict(e.transcript.String(), po...); err != nil {
		return engine.Sample{}, engine.DecodeError{Op: "sample", Err: err}
	}
	if !got || piece == "" {
		return engine.Sample{EOS: true, Token: -1}, nil
	}
	s := engine.Sample{Text: piece, Token: -1}
	if ids, err := e.tokenize(piece); err == nil && len(ids) > 0 {
		s.Token = engine.Token(ids[0])
	}
	return s, nil
}

// Rewind implements engine.Engine. When text is not the transcript suffix
// the same number of bytes is rolled back.
func (e *Engine) Rewind(text string) error {
	cur := e.transcript.String()
	if len(text) > len(cur) {
		return engine.DecodeError{Op: "rewind", Err: fmt.Errorf("cannot rewind %d bytes from %d", len(text), len(cur))}
	}
	e.transcript.Reset()
	e.transcript.WriteString(cur[:len(cur)-len(text)])
	return nil
}

type snapshot struct {
	V          int    `json:"v"`
	Transcript string `json:"transcript"`
	Step       int    `json:"step"`
	Cache      []byte `json:"cache,omitempty"`
	Sampler    bool   `json:"sampler"`
}

// SaveState implements engine.Engine. The blob carries the transcript and
// the prompt cache; the sampler section is the step counter that feeds the
// per-token seed.
func (e *Engine) SaveState(includeSampler bool) ([]byte, error) {
	s := snapshot{V: stateVersion, Transcript: e.transcript.String(), Sampler: includeSampler}
	if includeSampler {
		s.Step = e.step
	}
	if b, err := os.ReadFile(e.cache); err == nil {
		s.Cache = b
	}
	return json.Marshal(s)
}

// LoadState implements engine.Engine.
func (e *Engine) LoadState(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return engine.DecodeError{Op: "load_state", Err: err}
	}
	if s.V != stateVersion {
		return engine.DecodeError{Op: "load_state", Err: fmt.Errorf("unsupported state version %d", s.V)}
	}
	_ = os.Remove(e.cache)
	if len(s.Cache) > 0 {
		if err := os.WriteFile(e.cache, s.Cache, 0o600); err != nil {
			return engine.DecodeError{Op: "load_state", Err: err}
		}
	}
	e.transcript.Reset()
	e.transcript.WriteString(s.Transcript)
	if s.Sampler {
		e.step = s.Step
	}
	return nil
}

// Clear implements engine.Engine.
func (e *Engine) Clear() error {
	e.transcript.Reset()
	if err := os.Remove(e.cache); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	if e.l == nil {
		return errors.New("engine closed")
	}
	e.l.Free()
	e.l = nil
	return os.RemoveAll(e.dir)
}
