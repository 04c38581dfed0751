//go:build !llama

package llamacpp

import "steerd/internal/engine"

// Built reports whether this binary links llama.cpp.
const Built = false

// Loader refuses to load without the llama build tag.
type Loader struct {
	GPULayers int
}

// Load implements engine.Loader.
func (Loader) Load(string, engine.Params) (engine.Engine, error) {
	return nil, engine.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
