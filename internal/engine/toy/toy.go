// Package toy is a small in-process engine: a bigram model over a plain-text
// corpus file combined with bigrams observed in the live context. It
// implements every engine primitive (including sampler state and token bans)
// and is deterministic for a fixed seed, which makes it the collaborator of
// choice for tests and for running the daemon without llama.cpp.
package toy

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"steerd/internal/chattmpl"
	"steerd/internal/engine"
)

const (
	maxContextSize      = 1 << 20
	defaultRepeatWindow = 16
	contextWeight       = 3.0
	corpusWeight        = 1.0
	repeatPenalty       = 0.5
)

var errClosed = errors.New("engine closed")

var live atomic.Int64

// LiveHandles reports how many toy engines are loaded and not yet closed.
func LiveHandles() int64 { return live.Load() }

// Loader loads toy engines from corpus files.
type Loader struct {
	// DecodeDelay is slept once per decoded token to model prefill cost.
	DecodeDelay time.Duration
	// RepeatWindow is the number of recently accepted tokens the sampler
	// penalizes. Defaults to 16.
	RepeatWindow int
}

// Load implements engine.Loader.
func (l Loader) Load(modelPath string, p engine.Params) (engine.Engine, error) {
	p = p.WithDefaults()
	if p.ContextSize > maxContextSize {
		return nil, engine.ContextInitError{Err: fmt.Errorf("context size %d exceeds %d", p.ContextSize, maxContextSize)}
	}
	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	window := l.RepeatWindow
	if window <= 0 {
		window = defaultRepeatWindow
	}
	pcg := rand.NewPCG(uint64(p.Seed), uint64(p.Seed)^0x9e3779b97f4a7c15)
	e := &Engine{
		m:        m,
		params:   p,
		delay:    l.DecodeDelay,
		window:   window,
		pcg:      pcg,
		rng:      rand.New(pcg),
		banned:   make(map[engine.Token]struct{}),
		template: p.Template,
	}
	live.Add(1)
	return e, nil
}

// Engine is one loaded toy model plus its context.
type Engine struct {
	m        *model
	params   engine.Params
	delay    time.Duration
	window   int
	template string

	history []engine.Token
	recent  []engine.Token
	pcg     *rand.PCG
	rng     *rand.Rand
	banned  map[engine.Token]struct{}
	closed  bool
}

// Params returns the resolved load parameters (including the drawn seed).
func (e *Engine) Params() engine.Params { return e.params }

// History returns the text currently held in the context.
func (e *Engine) History() string {
	var b []byte
	for _, t := range e.history {
		b = append(b, e.m.piece(t)...)
	}
	return string(b)
}

// Tokenize implements engine.Engine.
func (e *Engine) Tokenize(text string, addBOS bool, dst []engine.Token) int {
	pieces := split(text)
	n := len(pieces)
	if addBOS {
		n++
	}
	if n > len(dst) {
		return -n
	}
	i := 0
	if addBOS {
		dst[0] = bosToken
		i = 1
	}
	copy(dst[i:], e.m.intern(pieces))
	return n
}

// ApplyChatTemplate implements engine.Engine.
func (e *Engine) ApplyChatTemplate(msgs []engine.Message, addAssistant bool, buf []byte) int {
	return chattmpl.Apply(e.template, msgs, addAssistant, buf)
}

// ContextSize implements engine.Engine.
func (e *Engine) ContextSize() int { return e.params.ContextSize }

// Decode implements engine.Engine.
func (e *Engine) Decode(b engine.Batch) error {
	if e.closed {
		return engine.DecodeError{Op: "decode", Err: errClosed}
	}
	if len(e.history)+len(b.Tokens) > e.params.ContextSize {
		return engine.DecodeError{Op: "decode", Err: fmt.Errorf("context full: %d + %d > %d", len(e.history), len(b.Tokens), e.params.ContextSize)}
	}
	for _, t := range b.Tokens {
		if int(t) < 0 || int(t) >= len(e.m.pieces) {
			return engine.DecodeError{Op: "decode", Err: fmt.Errorf("unknown token %d", t)}
		}
		if e.delay > 0 {
			time.Sleep(e.delay)
		}
		e.history = append(e.history, t)
		e.recent = append(e.recent, t)
		if len(e.recent) > e.window {
			e.recent = e.recent[len(e.recent)-e.window:]
		}
	}
	return nil
}

// BanNext implements engine.Banner. The ban applies to the next Sample only.
func (e *Engine) BanNext(tokens []engine.Token) {
	for _, t := range tokens {
		e.banned[t] = struct{}{}
	}
}

// Sample implements engine.Engine.
func (e *Engine) Sample() (engine.Sample, error) {
	if e.closed {
		return engine.Sample{}, engine.DecodeError{Op: "sample", Err: errClosed}
	}
	defer clear(e.banned)

	weights := make(map[engine.Token]float64)
	if n := len(e.history); n > 0 {
		last := e.history[n-1]
		for i := 0; i+1 < n; i++ {
			if e.history[i] == last {
				weights[e.history[i+1]] += contextWeight
			}
		}
		for t, c := range e.m.succ[last] {
			weights[t] += corpusWeight * float64(c)
		}
	}
	for _, t := range e.recent {
		if w, ok := weights[t]; ok {
			weights[t] = w * repeatPenalty
		}
	}

	cands := make([]engine.Token, 0, len(weights))
	for t := range weights {
		if e.m.special(t) {
			continue
		}
		if _, ok := e.banned[t]; ok {
			continue
		}
		cands = append(cands, t)
	}
	if len(cands) == 0 {
		return engine.Sample{Token: eosToken, EOS: true}, nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i] < cands[j] })
	total := 0.0
	for _, t := range cands {
		total += weights[t]
	}

	r := e.rng.Float64() * total
	pick := cands[len(cands)-1]
	for _, t := range cands {
		r -= weights[t]
		if r < 0 {
			pick = t
			break
		}
	}
	if pick == eosToken {
		return engine.Sample{Token: eosToken, EOS: true}, nil
	}
	return engine.Sample{Text: e.m.piece(pick), Token: pick}, nil
}

// Rewind implements engine.Engine: it drops as many trailing tokens as text
// tokenizes to, from the context and from the repeat-penalty window.
func (e *Engine) Rewind(text string) error {
	if e.closed {
		return engine.DecodeError{Op: "rewind", Err: errClosed}
	}
	n := len(split(text))
	if n > len(e.history) {
		return engine.DecodeError{Op: "rewind", Err: fmt.Errorf("cannot rewind %d tokens, context holds %d", n, len(e.history))}
	}
	e.history = e.history[:len(e.history)-n]
	e.recent = e.recent[:len(e.recent)-min(n, len(e.recent))]
	return nil
}

// Clear implements engine.Engine. Sampler state survives, as it does in
// llama.cpp when only the KV cache is cleared.
func (e *Engine) Clear() error {
	if e.closed {
		return engine.DecodeError{Op: "clear", Err: errClosed}
	}
	e.history = e.history[:0]
	return nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	if e.closed {
		return errClosed
	}
	e.closed = true
	e.history = nil
	live.Add(-1)
	return nil
}
