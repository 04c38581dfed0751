// Package registry discovers model files on disk and derives the metadata
// steerd needs from their names: quantization, family and chat template.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"steerd/internal/chattmpl"
	"steerd/internal/common/fsutil"
	"steerd/pkg/types"
)

// Scanner finds model files with the given extensions in a directory.
type Scanner struct {
	exts []string
}

// NewGGUFScanner scans for *.gguf files.
func NewGGUFScanner() *Scanner { return NewScanner(".gguf") }

// NewScanner scans for files with any of exts (case-insensitive).
func NewScanner(exts ...string) *Scanner {
	s := &Scanner{}
	for _, e := range exts {
		s.exts = append(s.exts, strings.ToLower(e))
	}
	return s
}

func (s *Scanner) match(name string) bool {
	lower := strings.ToLower(name)
	for _, e := range s.exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// Scan returns the models in dir sorted by id. The id is the full file name.
func (s *Scanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() || !s.match(e.Name()) {
			continue
		}
		models = append(models, Describe(filepath.Join(abs, e.Name())))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir for *.gguf files.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

var quantRe = regexp.MustCompile(`(?i)(?:^|[-_.])((?:iq|q)\d(?:_[a-z0-9]+)*|f16|f32|bf16)(?:[-_.]|$)`)

// families maps name fragments to families, most specific first.
var families = []struct{ frag, family string }{
	{"llama-3", "llama3"},
	{"llama3", "llama3"},
	{"phi-3", "phi3"},
	{"phi3", "phi3"},
	{"mixtral", "mistral"},
	{"mistral", "mistral"},
	{"gemma", "gemma"},
	{"qwen", "qwen"},
	{"lfm2", "lfm2"},
}

// Describe derives a model entry from a file path.
func Describe(path string) types.Model {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := types.Model{ID: name, Name: stem, Path: path}
	if q := quantRe.FindStringSubmatch(stem); q != nil {
		m.Quant = strings.ToUpper(q[1])
	}
	m.Family = DetectFamily(stem)
	if t, ok := chattmpl.Normalize(m.Family); ok {
		m.Template = t
	}
	return m
}

// DetectFamily guesses the model family from a file name. It returns ""
// when nothing matches.
func DetectFamily(name string) string {
	lower := strings.ToLower(name)
	for _, f := range families {
		if strings.Contains(lower, f.frag) {
			return f.family
		}
	}
	return ""
}
