package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// StateMeta describes a SavedState. It is not part of the engine blob.
type StateMeta struct {
	Model   string    `json:"model"`
	Sampler bool      `json:"sampler"`
	Created time.Time `json:"created"`
}

// SavedState is an immutable engine state blob. Copies share the underlying
// bytes, which are never written after construction.
type SavedState struct {
	data   []byte
	digest string
	meta   StateMeta
}

// NewSavedState copies data into a SavedState.
func NewSavedState(data []byte, meta StateMeta) SavedState {
	buf := append([]byte(nil), data...)
	sum := sha256.Sum256(buf)
	return SavedState{data: buf, digest: hex.EncodeToString(sum[:]), meta: meta}
}

// Bytes returns a copy of the blob.
func (s SavedState) Bytes() []byte { return append([]byte(nil), s.data...) }

// Len is the blob size in bytes.
func (s SavedState) Len() int { return len(s.data) }

// Digest is the hex sha256 of the blob.
func (s SavedState) Digest() string { return s.digest }

func (s SavedState) Meta() StateMeta { return s.meta }

// IsZero reports whether s holds no state.
func (s SavedState) IsZero() bool { return len(s.data) == 0 }
