package httpapi

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"steerd/internal/manager"
	"steerd/internal/policy"
	"steerd/internal/statestore"
	"steerd/internal/steering"
	"steerd/pkg/types"
)

type handlers struct {
	svc Service
}

// reqLogger returns a logger enabled at the request's level, tagged with
// the request id.
func reqLogger(r *http.Request) (zerolog.Logger, LogLevel) {
	lvl := requestLogLevel(r)
	l := zlog.With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		l = l.Str("request_id", rid)
	}
	return l.Logger(), lvl
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if req.ContextSize < 0 {
		writeJSONError(w, http.StatusBadRequest, "context_size must be >= 0")
		return
	}
	info, err := h.svc.CreateSession(r.Context(), manager.SessionOptions{
		Model:        req.Model,
		Seed:         req.Seed,
		ContextSize:  req.ContextSize,
		Template:     req.Template,
		SystemPrompt: req.SystemPrompt,
		UserSuffix:   req.UserSuffix,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// prompt streams NDJSON. Without trace a single done line is written. With
// trace one line per sample precedes it. Errors before the first line map
// to a status code; later errors end the stream with an error line.
func (h *handlers) prompt(w http.ResponseWriter, r *http.Request) {
	var req types.PromptRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}
	pol := policy.Policy{Prefix: req.Prefix, MaxTokens: req.MaxTokens}
	for _, rule := range req.Rules {
		pol.Rules = append(pol.Rules, policy.Rule{Kind: rule.Kind, Match: rule.Match, Text: rule.Text, Avoid: rule.Avoid})
	}
	if err := pol.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	log, lvl := reqLogger(r)
	start := time.Now()
	if lvl >= LevelInfo {
		log.Info().Str("session", id).Int("rules", len(pol.Rules)).Msg("prompt start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if promptTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(promptTimeout)*time.Second)
		defer tcancel()
	}

	sw := newStreamWriter(w, lvl >= LevelDebug, log)
	var observe func(steering.TokenSample, steering.Directive)
	if req.Trace {
		step := 0
		observe = func(s steering.TokenSample, d steering.Directive) {
			step++
			sw.line(types.PromptEvent{Step: step, Text: s.Text, Token: int32(s.Token), EOS: s.EOS, Directive: d.Kind().String()})
		}
	}

	res, err := h.svc.Prompt(ctx, id, req.Query, pol.Decider(), observe)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			// Client gone or shutting down.
			return
		}
		status := 0
		if sw.started {
			sw.line(types.PromptEvent{Done: true, Error: err.Error()})
		} else {
			status = writeServiceError(w, err)
		}
		if lvl >= LevelInfo {
			log.Info().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("prompt end")
		}
		return
	}
	counts := make(map[string]int, len(res.Counts))
	for k, n := range res.Counts {
		counts[k.String()] = n
	}
	sw.line(types.PromptEvent{Done: true, Content: res.Response, Fragments: res.Fragments, Steps: res.Steps, Counts: counts})
	if lvl >= LevelInfo {
		log.Info().Int("status", http.StatusOK).Int("steps", res.Steps).Dur("dur", time.Since(start)).Msg("prompt end")
	}
}

// streamWriter writes NDJSON lines, sending the header on first use.
type streamWriter struct {
	w       http.ResponseWriter
	out     *bufio.Writer
	flush   func()
	started bool
}

func newStreamWriter(w http.ResponseWriter, logLines bool, log zerolog.Logger) *streamWriter {
	dst := io.Writer(w)
	if logLines {
		dst = io.MultiWriter(w, &loggingLineWriter{log: log})
	}
	sw := &streamWriter{w: w, out: bufio.NewWriter(dst)}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

func (sw *streamWriter) line(ev types.PromptEvent) {
	if !sw.started {
		sw.started = true
		sw.w.Header().Set("Content-Type", "application/x-ndjson")
		sw.w.WriteHeader(http.StatusOK)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = sw.out.Write(append(b, '\n'))
	_ = sw.out.Flush()
	if sw.flush != nil {
		sw.flush()
	}
}

func (h *handlers) captureState(w http.ResponseWriter, r *http.Request) {
	var req types.CaptureStateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ent, err := h.svc.CaptureState(r.Context(), chi.URLParam(r, "id"), req.Priming, req.IncludeSampler)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stateInfo(ent))
}

func (h *handlers) restoreState(w http.ResponseWriter, r *http.Request) {
	var req types.RestoreStateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.StateID == "" {
		writeJSONError(w, http.StatusBadRequest, "state_id is required")
		return
	}
	if err := h.svc.RestoreState(r.Context(), chi.URLParam(r, "id"), req.StateID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) clearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listStates(w http.ResponseWriter, r *http.Request) {
	ents, err := h.svc.ListStates(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := types.StatesResponse{States: make([]types.StateInfo, 0, len(ents))}
	for _, e := range ents {
		out.States = append(out.States, stateInfo(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) deleteState(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteState(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func stateInfo(e statestore.Entry) types.StateInfo {
	return types.StateInfo{
		ID:      e.ID,
		Digest:  e.Digest,
		Size:    e.Size,
		Model:   e.Model,
		Sampler: e.Sampler,
		Created: e.Created.Unix(),
	}
}
