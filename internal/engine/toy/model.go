package toy

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"steerd/internal/engine"
)

const (
	bosToken engine.Token = 0
	eosToken engine.Token = 1
)

// model is the "weights": a vocabulary plus bigram counts from a corpus
// file. The vocabulary grows as new text is tokenized; ids are assigned in
// first-seen order so identical call sequences yield identical ids.
type model struct {
	path   string
	digest string
	vocab  map[string]engine.Token
	pieces []string
	succ   map[engine.Token]map[engine.Token]int
}

func loadModel(path string) (*model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, engine.ModelLoadError{Path: path, Err: os.ErrNotExist}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.ModelLoadError{Path: path, Err: err}
	}
	sum := sha256.Sum256(data)
	m := &model{
		path:   path,
		digest: hex.EncodeToString(sum[:8]),
		vocab:  map[string]engine.Token{bosText: bosToken, eosText: eosToken},
		pieces: []string{bosText, eosText},
		succ:   make(map[engine.Token]map[engine.Token]int),
	}
	toks := m.intern(split(string(data)))
	for i := 0; i+1 < len(toks); i++ {
		m.observe(toks[i], toks[i+1])
	}
	return m, nil
}

func (m *model) intern(pieces []string) []engine.Token {
	out := make([]engine.Token, len(pieces))
	for i, p := range pieces {
		id, ok := m.vocab[p]
		if !ok {
			id = engine.Token(len(m.pieces))
			m.vocab[p] = id
			m.pieces = append(m.pieces, p)
		}
		out[i] = id
	}
	return out
}

func (m *model) observe(a, b engine.Token) {
	next := m.succ[a]
	if next == nil {
		next = make(map[engine.Token]int)
		m.succ[a] = next
	}
	next[b]++
}

func (m *model) piece(t engine.Token) string {
	if t < 0 || int(t) >= len(m.pieces) {
		return ""
	}
	return m.pieces[t]
}

// special reports whether t is a control marker that sampling must never
// propose (EOS excepted).
func (m *model) special(t engine.Token) bool {
	return t != eosToken && isSpecial(m.piece(t))
}
