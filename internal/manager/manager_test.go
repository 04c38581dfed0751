package manager

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"steerd/internal/engine"
	"steerd/internal/engine/toy"
	"steerd/pkg/types"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := NewWithConfig(Config{})
	if m.maxQueueDepth != defaultMaxQueueDepth {
		t.Fatalf("expected default maxQueueDepth=%d got %d", defaultMaxQueueDepth, m.maxQueueDepth)
	}
	if m.maxWait != defaultMaxWait || m.drainTimeout != defaultDrainTimeout {
		t.Fatalf("unexpected defaults: wait=%v drain=%v", m.maxWait, m.drainTimeout)
	}
	if m.backend != "llama" || m.states == nil {
		t.Fatalf("expected llama backend and a default state store")
	}
}

func TestListModelsReturnsCopy(t *testing.T) {
	reg := []types.Model{{ID: "a"}, {ID: "b"}}
	m := NewWithConfig(Config{Registry: reg})
	out := m.ListModels()
	if len(out) != 2 {
		t.Fatalf("expected 2 got %d", len(out))
	}
	out[0].ID = "z"
	if m.ListModels()[0].ID != "a" {
		t.Fatalf("registry mutated via returned slice")
	}
}

func TestReady(t *testing.T) {
	if NewWithConfig(Config{}).Ready() {
		t.Fatalf("empty registry must not be ready")
	}
	m := newManager(t, modelDir(t, "a.txt"), Config{})
	if !m.Ready() {
		t.Fatalf("expected ready")
	}
	_ = m.Close()
	if m.Ready() {
		t.Fatalf("closed manager must not be ready")
	}
}

func TestCreateSession_ModelNotFound(t *testing.T) {
	m := newManager(t, modelDir(t, "a.txt"), Config{})
	_, err := m.CreateSession(testCtx(t), SessionOptions{Model: "missing"})
	if !IsModelNotFound(err) {
		t.Fatalf("expected model not found error, got %v", err)
	}
	// No default configured.
	if _, err := m.CreateSession(testCtx(t), SessionOptions{}); !IsModelNotFound(err) {
		t.Fatalf("expected model not found for empty id, got %v", err)
	}
}

func TestCreateSession_DefaultModelAndOverrides(t *testing.T) {
	m := newManager(t, modelDir(t, "a.txt"), Config{DefaultModel: "a.txt"})
	info, err := m.CreateSession(testCtx(t), SessionOptions{Seed: 99, ContextSize: 1024, Template: "phi3"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info.ModelID != "a.txt" || info.Seed != 99 || info.ContextSize != 1024 || info.Template != "phi3" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.State != string(StateReady) || info.MaxQueueDepth != defaultMaxQueueDepth {
		t.Fatalf("unexpected info: %+v", info)
	}
	got, err := m.Session(info.ID)
	if err != nil || got.ID != info.ID {
		t.Fatalf("Session: %+v %v", got, err)
	}
}

func TestCreateSession_LoadFailureRollsBack(t *testing.T) {
	reg := []types.Model{{ID: "gone", Path: filepath.Join(t.TempDir(), "gone.txt")}}
	pub := NewMemoryPublisher()
	m := NewWithConfig(Config{Registry: reg, Loader: toy.Loader{}, Publisher: pub, BudgetMB: 10})
	defer m.Close()
	_, err := m.CreateSession(testCtx(t), SessionOptions{Model: "gone"})
	if !engine.IsModelLoadFailure(err) {
		t.Fatalf("want model load failure, got %v", err)
	}
	st := m.Status()
	if st.UsedMB != 0 || len(st.Sessions) != 0 || st.LastError == "" {
		t.Fatalf("unexpected status after failure: %+v", st)
	}
	if names := pub.Names(); len(names) != 1 || names[0] != EventSessionFailed {
		t.Fatalf("unexpected events: %v", names)
	}
}

func TestCreateSession_DependencyUnavailable(t *testing.T) {
	dir := modelDir(t, "a.txt")
	m := newManager(t, dir, Config{Loader: unavailableLoader{}})
	if _, err := m.CreateSession(testCtx(t), SessionOptions{Model: "a.txt"}); !IsDependencyUnavailable(err) {
		t.Fatalf("want dependency unavailable, got %v", err)
	}
}

type unavailableLoader struct{}

func (unavailableLoader) Load(string, engine.Params) (engine.Engine, error) {
	return nil, engine.ErrDependencyUnavailable("no backend")
}

func TestPromptThroughManager(t *testing.T) {
	pub := NewMemoryPublisher()
	m := newManager(t, modelDir(t, "a.txt"), Config{Publisher: pub})
	info, err := m.CreateSession(testCtx(t), SessionOptions{Model: "a.txt", Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	res, err := m.Prompt(testCtx(t), info.ID, "Tell me about the dog.", acceptUpTo(8), nil)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if res.Response == "" || res.Steps == 0 {
		t.Fatalf("empty result: %+v", res)
	}
	names := strings.Join(pub.Names(), ",")
	if names != EventSessionCreated+","+EventPromptDone {
		t.Fatalf("unexpected events: %s", names)
	}
	if _, err := m.Prompt(testCtx(t), "nope", "x", acceptUpTo(1), nil); !IsSessionNotFound(err) {
		t.Fatalf("want session not found, got %v", err)
	}
}

func TestCaptureAndRestoreAcrossSessions(t *testing.T) {
	m := newManager(t, modelDir(t, "a.txt"), Config{})
	ctx := testCtx(t)
	a, _ := m.CreateSession(ctx, SessionOptions{Model: "a.txt"})
	b, _ := m.CreateSession(ctx, SessionOptions{Model: "a.txt"})

	ent, err := m.CaptureState(ctx, a.ID, "The codeword is zanzibar.", true)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if ent.Size == 0 || !ent.Sampler {
		t.Fatalf("bad entry: %+v", ent)
	}
	if err := m.RestoreState(ctx, b.ID, ent.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := m.RestoreState(ctx, b.ID, "01920f3e-7a4b-7c1d-8e2f-3a4b5c6d7e8f"); !IsStateNotFound(err) {
		t.Fatalf("want state not found, got %v", err)
	}
	list, err := m.ListStates(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if err := m.DeleteState(ctx, ent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.ClearSession(ctx, b.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestTooBusyFromSessionQueue(t *testing.T) {
	m := newManager(t, modelDir(t, "a.txt"), Config{MaxQueueDepth: 1, MaxWait: 50 * time.Millisecond})
	info, _ := m.CreateSession(testCtx(t), SessionOptions{Model: "a.txt"})
	finish := holdSession(t, m, info.ID)
	defer finish()
	_, err := m.Prompt(testCtx(t), info.ID, "x", acceptUpTo(1), nil)
	if !IsTooBusy(err) {
		t.Fatalf("want too busy, got %v", err)
	}
	if st := m.Status(); st.LastError != "" {
		t.Fatalf("backpressure must not be recorded as an error: %q", st.LastError)
	}
}

func TestClosedManagerRejectsWork(t *testing.T) {
	before := toy.LiveHandles()
	m := newManager(t, modelDir(t, "a.txt"), Config{})
	info, _ := m.CreateSession(testCtx(t), SessionOptions{Model: "a.txt"})
	if toy.LiveHandles() != before+1 {
		t.Fatalf("expected one live engine")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if toy.LiveHandles() != before {
		t.Fatalf("engines left open after Close")
	}
	if _, err := m.CreateSession(testCtx(t), SessionOptions{Model: "a.txt"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
	if err := m.ClearSession(context.Background(), info.ID); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
