// Package session owns one engine and serializes every operation on it.
//
// A Session is the unit callers work with: Prompt runs a steered generation,
// CapturePromptState/RestorePromptState snapshot and reuse a primed context,
// Clear empties the context and Close releases the engine. All of them take
// the session's write turn through a FIFO Gate, so concurrent callers are
// applied one at a time in arrival order. Different sessions share nothing.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"steerd/internal/engine"
	"steerd/internal/metrics"
	"steerd/internal/prompt"
	"steerd/internal/steering"
)

// Option configures Create.
type Option func(*options)

type options struct {
	id         string
	log        zerolog.Logger
	promptOpts []prompt.Option
	maxQueue   int
	maxWait    time.Duration
}

// WithID sets the session id. Defaults to a UUIDv7.
func WithID(id string) Option { return func(o *options) { o.id = id } }

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithSystemPrompt prepends a system message to every formatted query.
func WithSystemPrompt(s string) Option {
	return func(o *options) { o.promptOpts = append(o.promptOpts, prompt.WithSystemPrompt(s)) }
}

// WithUserSuffix appends s to every user query.
func WithUserSuffix(s string) Option {
	return func(o *options) { o.promptOpts = append(o.promptOpts, prompt.WithUserSuffix(s)) }
}

// WithHorizon sets the generation length reserved by the capacity check.
func WithHorizon(n int) Option {
	return func(o *options) { o.promptOpts = append(o.promptOpts, prompt.WithHorizon(n)) }
}

// WithAdmission bounds the operation queue and the time spent waiting in it.
func WithAdmission(maxQueue int, maxWait time.Duration) Option {
	return func(o *options) { o.maxQueue, o.maxWait = maxQueue, maxWait }
}

// Session is one engine plus the discipline that protects it.
type Session struct {
	id     string
	model  string
	params engine.Params
	eng    engine.Engine
	fmt    *prompt.Formatter
	gate   *Gate
	log    zerolog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Create loads modelPath with loader and wraps the engine in a session. Load
// failures are returned as engine.ModelLoadError or engine.ContextInitError
// and are not retried.
func Create(loader engine.Loader, modelPath string, p engine.Params, opts ...Option) (*Session, error) {
	o := options{log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.id == "" {
		o.id = uuid.Must(uuid.NewV7()).String()
	}
	p = p.WithDefaults()
	eng, err := loader.Load(modelPath, p)
	if err != nil {
		return nil, err
	}
	log := o.log.With().Str("session", o.id).Logger()
	s := &Session{
		id:     o.id,
		model:  modelPath,
		params: p,
		eng:    eng,
		fmt:    prompt.New(eng, append([]prompt.Option{prompt.WithLogger(log)}, o.promptOpts...)...),
		gate:   NewGate(o.maxQueue, o.maxWait),
		log:    log,
	}
	metrics.LiveSessions.Inc()
	log.Info().Str("model", modelPath).Int("ctx", p.ContextSize).Int("threads", p.Threads).Uint32("seed", p.Seed).Msg("session created")
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Model is the path the engine was loaded from.
func (s *Session) Model() string { return s.model }

// Params are the resolved load parameters, including the drawn seed.
func (s *Session) Params() engine.Params { return s.params }

// Busy reports whether an operation holds the write turn.
func (s *Session) Busy() bool { return s.gate.Busy() }

// Waiting reports how many operations are queued.
func (s *Session) Waiting() int { return s.gate.Waiting() }

// MaxQueue is the admission queue bound (0 for unbounded).
func (s *Session) MaxQueue() int { return s.gate.MaxQueue() }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// do runs fn holding the write turn.
func (s *Session) do(ctx context.Context, op string, fn func() error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	release, err := s.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	start := time.Now()
	err = fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.OperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

// Prompt formats query, feeds it, and runs the steering loop with decide.
// It returns the final response.
func (s *Session) Prompt(ctx context.Context, query string, decide steering.DecisionFunc) (string, error) {
	res, err := s.Generate(ctx, query, decide, nil)
	return res.Response, err
}

// Generate is Prompt with the full loop result. observe, if set, sees each
// sample and the directive chosen for it.
func (s *Session) Generate(ctx context.Context, query string, decide steering.DecisionFunc, observe func(steering.TokenSample, steering.Directive)) (steering.Result, error) {
	if decide == nil {
		return steering.Result{}, ErrNilDecision
	}
	var res steering.Result
	err := s.do(ctx, "prompt", func() error {
		if err := s.prime(query); err != nil {
			return err
		}
		opts := []steering.Option{steering.WithLogger(s.log)}
		if observe != nil {
			opts = append(opts, steering.WithObserver(observe))
		}
		var err error
		res, err = steering.New(s.eng, s.fmt, opts...).Run(ctx, decide)
		return err
	})
	if err == nil {
		s.log.Debug().Int("steps", res.Steps).Int("len", len(res.Response)).Msg("prompt done")
	}
	return res, err
}

// prime feeds the templated text for query without sampling.
func (s *Session) prime(query string) error {
	toks, text, err := s.fmt.FormatAndTokenize(query)
	if err != nil {
		return err
	}
	return s.eng.Decode(engine.Batch{Tokens: toks, Text: text})
}

// CapturePromptState feeds priming exactly as Prompt would (template,
// tokenize, decode; no sampling) and snapshots the resulting engine state.
// The session stays primed.
func (s *Session) CapturePromptState(ctx context.Context, priming string, includeSampler bool) (SavedState, error) {
	var st SavedState
	err := s.do(ctx, "capture", func() error {
		if err := s.prime(priming); err != nil {
			return err
		}
		data, err := s.eng.SaveState(includeSampler)
		if err != nil {
			return err
		}
		st = NewSavedState(data, StateMeta{Model: s.model, Sampler: includeSampler, Created: time.Now().UTC()})
		return nil
	})
	if err != nil {
		return SavedState{}, err
	}
	metrics.StateBytes.Observe(float64(st.Len()))
	s.log.Debug().Int("bytes", st.Len()).Bool("sampler", includeSampler).Msg("state captured")
	return st, nil
}

// RestorePromptState replaces the engine state with st. st is not modified.
func (s *Session) RestorePromptState(ctx context.Context, st SavedState) error {
	if st.IsZero() {
		return ErrEmptyState
	}
	return s.do(ctx, "restore", func() error {
		return s.eng.LoadState(st.data)
	})
}

// Clear empties the engine context; the model stays loaded.
func (s *Session) Clear(ctx context.Context) error {
	return s.do(ctx, "clear", s.eng.Clear)
}

// Close waits for queued and in-flight operations, then releases the engine
// exactly once. Later calls return ErrSessionClosed.
func (s *Session) Close() error {
	first := false
	s.closeOnce.Do(func() {
		first = true
		release, _ := s.gate.AcquireUnbounded(context.Background())
		s.closed.Store(true)
		s.closeErr = s.eng.Close()
		release()
		metrics.LiveSessions.Dec()
		s.log.Info().Msg("session closed")
	})
	if !first {
		return ErrSessionClosed
	}
	return s.closeErr
}
