package toy

import (
	"fmt"

	json "github.com/goccy/go-json"

	"steerd/internal/engine"
)

const stateVersion = 1

// snapshot is the serialized context. Tokens are stored as text pieces so a
// blob stays valid for any engine loaded from the same corpus, whatever ids
// that engine assigned.
type snapshot struct {
	Version int      `json:"v"`
	Model   string   `json:"model"`
	History []string `json:"history"`
	Sampler *sampler `json:"sampler,omitempty"`
}

type sampler struct {
	RNG    []byte   `json:"rng"`
	Recent []string `json:"recent"`
}

// SaveState implements engine.Engine.
func (e *Engine) SaveState(includeSampler bool) ([]byte, error) {
	if e.closed {
		return nil, engine.DecodeError{Op: "save_state", Err: errClosed}
	}
	s := snapshot{Version: stateVersion, Model: e.m.digest, History: e.texts(e.history)}
	if includeSampler {
		rng, err := e.pcg.MarshalBinary()
		if err != nil {
			return nil, engine.DecodeError{Op: "save_state", Err: err}
		}
		s.Sampler = &sampler{RNG: rng, Recent: e.texts(e.recent)}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, engine.DecodeError{Op: "save_state", Err: err}
	}
	return b, nil
}

// LoadState implements engine.Engine. Without a sampler section the current
// sampler state is kept.
func (e *Engine) LoadState(data []byte) error {
	if e.closed {
		return engine.DecodeError{Op: "load_state", Err: errClosed}
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return engine.DecodeError{Op: "load_state", Err: err}
	}
	if s.Version != stateVersion {
		return engine.DecodeError{Op: "load_state", Err: fmt.Errorf("unsupported state version %d", s.Version)}
	}
	if s.Model != e.m.digest {
		return engine.DecodeError{Op: "load_state", Err: fmt.Errorf("state was captured from model %s, loaded model is %s", s.Model, e.m.digest)}
	}
	if len(s.History) > e.params.ContextSize {
		return engine.DecodeError{Op: "load_state", Err: fmt.Errorf("state holds %d tokens, context size is %d", len(s.History), e.params.ContextSize)}
	}
	if s.Sampler != nil {
		if err := e.pcg.UnmarshalBinary(s.Sampler.RNG); err != nil {
			return engine.DecodeError{Op: "load_state", Err: err}
		}
		e.recent = e.m.intern(s.Sampler.Recent)
	}
	e.history = e.m.intern(s.History)
	return nil
}

func (e *Engine) texts(toks []engine.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = e.m.piece(t)
	}
	return out
}
