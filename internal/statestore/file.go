package statestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"steerd/internal/common/fsutil"
	"steerd/internal/session"
)

const (
	blobExt     = ".state"
	manifestExt = ".json"
)

// File stores each state as <id>.state next to an <id>.json manifest.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates dir if needed. A leading '~' is expanded.
func NewFile(dir string) (*File, error) {
	d, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if d == "" {
		return nil, errors.New("state dir is empty")
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &File{dir: d}, nil
}

func (f *File) Dir() string { return f.dir }

func (f *File) path(id, ext string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %s", ErrStateNotFound, id)
	}
	return filepath.Join(f.dir, id+ext), nil
}

func (f *File) Put(ctx context.Context, st session.SavedState) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if st.IsZero() {
		return Entry{}, session.ErrEmptyState
	}
	e := newEntry(st)
	man, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Blob first: a manifest only ever points at a complete blob.
	if err := fsutil.WriteFileAtomic(filepath.Join(f.dir, e.ID+blobExt), st.Bytes(), 0o600); err != nil {
		return Entry{}, fmt.Errorf("write state: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(f.dir, e.ID+manifestExt), man, 0o600); err != nil {
		_ = os.Remove(filepath.Join(f.dir, e.ID+blobExt))
		return Entry{}, fmt.Errorf("write manifest: %w", err)
	}
	return e, nil
}

func (f *File) readEntry(id string) (Entry, error) {
	p, err := f.path(id, manifestExt)
	if err != nil {
		return Entry{}, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, fmt.Errorf("%w: %s", ErrStateNotFound, id)
	}
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: manifest %s: %v", ErrCorrupt, id, err)
	}
	return e, nil
}

func (f *File) Get(ctx context.Context, id string) (session.SavedState, Entry, error) {
	if err := ctx.Err(); err != nil {
		return session.SavedState{}, Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.readEntry(id)
	if err != nil {
		return session.SavedState{}, Entry{}, err
	}
	data, err := os.ReadFile(filepath.Join(f.dir, id+blobExt))
	if errors.Is(err, fs.ErrNotExist) {
		return session.SavedState{}, Entry{}, fmt.Errorf("%w: blob missing for %s", ErrCorrupt, id)
	}
	if err != nil {
		return session.SavedState{}, Entry{}, err
	}
	st := session.NewSavedState(data, e.meta())
	if st.Digest() != e.Digest {
		return session.SavedState{}, Entry{}, fmt.Errorf("%w: digest mismatch for %s", ErrCorrupt, id)
	}
	return st, e, nil
}

func (f *File) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.readEntry(id); err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	if err := os.Remove(filepath.Join(f.dir, id+manifestExt)); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(f.dir, id+blobExt)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns manifests oldest first. Unreadable manifests are skipped.
func (f *File) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	des, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, manifestExt) || strings.HasPrefix(name, ".") {
			continue
		}
		e, err := f.readEntry(strings.TrimSuffix(name, manifestExt))
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}
