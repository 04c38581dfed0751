// Package engine defines what the steering core needs from an autoregressive
// inference engine. The engine owns the loaded model and one inference
// context; everything numeric (weights, attention cache, sampling math) stays
// behind this interface.
//
// Implementations:
//
//   - toy: in-process bigram engine, deterministic for a fixed seed. Used by
//     tests and by `steerd --backend toy`.
//   - llamacpp: go-llama.cpp binding. Enabled with `-tags=llama`; without the
//     tag a stub returns a dependency-unavailable error from Load.
package engine

import "math"

// TokenizeFailed is returned by Engine.Tokenize when text could not be
// tokenized at all.
const TokenizeFailed = math.MinInt32

// Token is a model-specific token id. It is only meaningful to the engine
// that produced it.
type Token int32

// Sample is one proposal from the engine: what it would emit next if left
// alone.
type Sample struct {
	Text  string
	Token Token
	EOS   bool
}

// Batch is a run of tokens to advance the context by. Text is the surface
// text the tokens were produced from; token-level engines ignore it, while
// bindings that only accept text use it instead of Tokens.
type Batch struct {
	Tokens []Token
	Text   string
}

// Message is a chat turn handed to the chat template.
type Message struct {
	Role    string
	Content string
}

// Loader loads a model and allocates an inference context for it.
type Loader interface {
	// Load returns a ModelLoadError when the model cannot be read and a
	// ContextInitError when the context cannot be allocated.
	Load(modelPath string, p Params) (Engine, error)
}

// Engine is a loaded model plus one inference context. It is not safe for
// concurrent use; callers serialize access (see session).
type Engine interface {
	// Tokenize writes the tokens for text into dst and returns how many were
	// written. TokenizeFailed means the tokenizer rejected text. Any other
	// negative result means dst was too small; its magnitude is the required
	// length.
	Tokenize(text string, addBOS bool, dst []Token) int
	// ApplyChatTemplate renders msgs into buf and returns the length of the
	// full rendering, which may exceed len(buf). Negative means the template
	// could not be applied.
	ApplyChatTemplate(msgs []Message, addAssistant bool, buf []byte) int
	// ContextSize is the configured context window in tokens.
	ContextSize() int
	// Decode advances the context by b (accepting each token into the
	// running generation).
	Decode(b Batch) error
	// Sample draws the next token from the current context without
	// advancing it.
	Sample() (Sample, error)
	// Rewind rolls the context back by the token span of text.
	Rewind(text string) error
	// SaveState serializes the incremental generation state. When
	// includeSampler is set the sampler's internal state is captured too.
	SaveState(includeSampler bool) ([]byte, error)
	// LoadState replaces the generation state with a blob from SaveState.
	// It must not retain or modify data.
	LoadState(data []byte) error
	// Clear empties the context while keeping the model loaded.
	Clear() error
	// Close releases the model and context. It must be called exactly once.
	Close() error
}

// Banner is implemented by engines that can exclude tokens from the next
// sample only.
type Banner interface {
	BanNext(tokens []Token)
}
