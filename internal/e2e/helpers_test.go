package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"steerd/internal/engine"
	"steerd/internal/engine/toy"
	"steerd/internal/httpapi"
	"steerd/internal/manager"
	"steerd/internal/registry"
	"steerd/pkg/types"
)

const corpus = `The dog ran to the park and the dog sat down.
The cat slept on the mat while the dog barked.
I'm doing well today.
Birds sing in the morning and fly south in winter.<|eos|>
`

// createToyModelsDir writes one toy corpus per name and returns the
// directory.
func createToyModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(corpus), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// newServer starts an httptest server over a toy-backed manager. Unset
// Loader and Params get toy defaults.
func newServer(t *testing.T, modelsDir string, cfg manager.Config) (*httptest.Server, *manager.Manager) {
	t.Helper()
	reg, err := registry.NewScanner(".txt").Scan(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	cfg.Registry = reg
	cfg.Backend = "toy"
	if cfg.Loader == nil {
		cfg.Loader = toy.Loader{}
	}
	if cfg.Params.ContextSize == 0 {
		cfg.Params = engine.Params{ContextSize: 4096, Seed: 21}
	}
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, mgr
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	return httpDo(t, http.MethodGet, url, nil)
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	return httpDo(t, http.MethodPost, url, payload)
}

// createSession posts body to /sessions and returns the new session id.
func createSession(t *testing.T, base, body string) string {
	t.Helper()
	resp, b := httpPostJSON(t, base+"/sessions", []byte(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: %d %s", resp.StatusCode, string(b))
	}
	var info types.SessionInfo
	if err := json.Unmarshal(b, &info); err != nil {
		t.Fatalf("session json: %v body=%s", err, string(b))
	}
	return info.ID
}

// doneEvent returns the terminal line of an NDJSON prompt stream.
func doneEvent(t *testing.T, body []byte) types.PromptEvent {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	var ev types.PromptEvent
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &ev); err != nil {
		t.Fatalf("ndjson: %v body=%s", err, string(body))
	}
	if !ev.Done {
		t.Fatalf("last line is not a done event: %s", lines[len(lines)-1])
	}
	return ev
}
