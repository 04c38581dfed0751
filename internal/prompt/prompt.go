// Package prompt turns user text into engine tokens: chat-template
// formatting, tokenization with exact buffer sizing, and the advisory
// context-capacity check.
package prompt

import (
	"fmt"

	"github.com/rs/zerolog"

	"steerd/internal/engine"
	"steerd/internal/metrics"
)

const (
	// templateMargin is the fixed room the chat template gets on top of the
	// text it wraps.
	templateMargin = 1200
	// DefaultHorizon is the generation length assumed by the capacity check.
	DefaultHorizon = 64
)

// Option configures a Formatter.
type Option func(*Formatter)

// WithSystemPrompt prepends a system message to every formatted query.
func WithSystemPrompt(s string) Option { return func(f *Formatter) { f.system = s } }

// WithUserSuffix appends s to every user query before templating.
func WithUserSuffix(s string) Option { return func(f *Formatter) { f.suffix = s } }

// WithHorizon sets the generation length the capacity check reserves.
func WithHorizon(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.horizon = n
		}
	}
}

// WithLogger sets the logger used for capacity warnings.
func WithLogger(l zerolog.Logger) Option { return func(f *Formatter) { f.log = l } }

// Formatter is bound to one engine. It performs no locking; callers hold the
// session's write turn.
type Formatter struct {
	eng     engine.Engine
	system  string
	suffix  string
	horizon int
	log     zerolog.Logger
}

// New returns a Formatter for eng.
func New(eng engine.Engine, opts ...Option) *Formatter {
	f := &Formatter{eng: eng, horizon: DefaultHorizon, log: zerolog.Nop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Messages returns the chat messages Format renders for query.
func (f *Formatter) Messages(query string) []engine.Message {
	msgs := make([]engine.Message, 0, 2)
	if f.system != "" {
		msgs = append(msgs, engine.Message{Role: "system", Content: f.system})
	}
	return append(msgs, engine.Message{Role: "user", Content: query + f.suffix})
}

// Format applies the engine's chat template to query as a user turn followed
// by the assistant generation prompt.
func (f *Formatter) Format(query string) (string, error) {
	msgs := f.Messages(query)
	limit := templateMargin
	for _, m := range msgs {
		limit += len(m.Content)
	}
	buf := make([]byte, limit)
	n := f.eng.ApplyChatTemplate(msgs, true, buf)
	if n < 0 || n > limit {
		return "", engine.FormatError{Code: n, Limit: limit}
	}
	return string(buf[:n]), nil
}

// Tokenize returns exactly the tokens the engine produces for text. The
// buffer holds one token per UTF-8 byte plus BOS plus one, which bounds any
// byte-level tokenizer.
func (f *Formatter) Tokenize(text string, addBOS bool) ([]engine.Token, error) {
	size := len(text) + 1
	if addBOS {
		size++
	}
	toks := make([]engine.Token, size)
	n := f.eng.Tokenize(text, addBOS, toks)
	if n == engine.TokenizeFailed {
		return nil, engine.DecodeError{Op: "tokenize", Err: fmt.Errorf("tokenizer rejected %d bytes of text", len(text))}
	}
	if n < 0 {
		return nil, engine.DecodeError{Op: "tokenize", Err: fmt.Errorf("%d tokens do not fit buffer of %d", -n, size)}
	}
	return toks[:n], nil
}

// FormatAndTokenize formats query, tokenizes the result with BOS and runs
// the capacity check. Returns the tokens and the formatted text.
func (f *Formatter) FormatAndTokenize(query string) ([]engine.Token, string, error) {
	text, err := f.Format(query)
	if err != nil {
		return nil, "", err
	}
	toks, err := f.Tokenize(text, true)
	if err != nil {
		return nil, "", err
	}
	metrics.PromptTokens.Observe(float64(len(toks)))
	f.CheckCapacity(len(toks))
	return toks, text, nil
}

// CheckCapacity logs a warning when n prompt tokens plus the generation
// horizon exceed the context window. It never fails: the engine enforces
// the hard limit.
func (f *Formatter) CheckCapacity(n int) bool {
	need := n + f.horizon
	ctx := f.eng.ContextSize()
	if need <= ctx {
		return true
	}
	metrics.ContextOverflowWarnings.Inc()
	f.log.Warn().Int("prompt_tokens", n).Int("horizon", f.horizon).Int("context_size", ctx).
		Msg("prompt plus generation horizon exceeds context window")
	return false
}
