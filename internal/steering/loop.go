// Package steering runs the sample/decide/apply loop that lets a caller
// steer token-by-token generation.
package steering

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"steerd/internal/engine"
	"steerd/internal/metrics"
)

var (
	// ErrInvalidDirective is returned when a decision function yields a
	// Directive that was not built with one of the constructors.
	ErrInvalidDirective = errors.New("invalid steering directive")
	// ErrNilDecision is returned by Run when no decision function is given.
	ErrNilDecision = errors.New("nil decision function")
)

// Tokenizer converts text to the exact token sequence the engine expects.
// *prompt.Formatter implements it.
type Tokenizer interface {
	Tokenize(text string, addBOS bool) ([]engine.Token, error)
}

// Result is the outcome of one Run.
type Result struct {
	// Response is the accumulated response text.
	Response string
	// Fragments lists every piece of text fed to the engine, in order.
	// After a ReverseAndForce the forced text appears here even though it
	// was folded into Response by substitution.
	Fragments []string
	// Steps is the number of samples drawn.
	Steps  int
	Counts map[Kind]int
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l zerolog.Logger) Option { return func(lp *Loop) { lp.log = l } }

// WithObserver registers fn to see every sample together with the directive
// the decision function returned for it.
func WithObserver(fn func(TokenSample, Directive)) Option {
	return func(lp *Loop) { lp.observe = fn }
}

// Loop drives one engine. It holds no locks; the caller owns the engine for
// the duration of Run.
type Loop struct {
	eng     engine.Engine
	tok     Tokenizer
	log     zerolog.Logger
	observe func(TokenSample, Directive)
}

// New returns a loop over eng using tok for injected text.
func New(eng engine.Engine, tok Tokenizer, opts ...Option) *Loop {
	lp := &Loop{eng: eng, tok: tok, log: zerolog.Nop()}
	for _, o := range opts {
		o(lp)
	}
	return lp
}

// Run applies directives until decide returns Complete. ctx is checked
// between iterations only, so a cancelled run never leaves the engine
// mid-token. On error the partial result is returned alongside it.
func (lp *Loop) Run(ctx context.Context, decide DecisionFunc) (Result, error) {
	if decide == nil {
		return Result{}, ErrNilDecision
	}
	res := Result{Counts: make(map[Kind]int)}
	d := Start()
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := lp.apply(d, &res); err != nil {
			return res, err
		}
		res.Counts[d.kind]++
		metrics.Directives.WithLabelValues(d.kind.String()).Inc()
		if d.kind == KindComplete {
			lp.log.Debug().Int("steps", res.Steps).Int("len", len(res.Response)).Msg("generation complete")
			return res, nil
		}

		s, err := lp.eng.Sample()
		if err != nil {
			return res, err
		}
		metrics.Samples.Inc()
		res.Steps++
		sample := TokenSample{Text: s.Text, Token: s.Token, Response: res.Response, EOS: s.EOS}
		d = decide(sample)
		if lp.observe != nil {
			lp.observe(sample, d)
		}
		lp.log.Debug().Str("sample", sample.Text).Bool("eos", sample.EOS).Stringer("directive", d).Msg("step")
	}
}

func (lp *Loop) apply(d Directive, res *Result) error {
	switch d.kind {
	case KindStart, KindComplete:
		return nil
	case KindAccept:
		s := d.sample
		if err := lp.eng.Decode(engine.Batch{Tokens: []engine.Token{s.Token}, Text: s.Text}); err != nil {
			return err
		}
		res.emit(s.Text)
		return nil
	case KindForce:
		return lp.inject(d.text, res)
	case KindAcceptAndAvoid:
		if err := lp.inject(d.text, res); err != nil {
			return err
		}
		return lp.ban(d.avoid)
	case KindAcceptAndForce:
		if err := lp.inject(d.text, res); err != nil {
			return err
		}
		return lp.inject(d.forced, res)
	case KindReverseAndForce:
		if err := lp.eng.Rewind(d.text); err != nil {
			return err
		}
		res.Response = strings.Replace(res.Response, d.text, d.forced, 1)
		if err := lp.feed(d.forced); err != nil {
			return err
		}
		res.Fragments = append(res.Fragments, d.forced)
		return nil
	default:
		return ErrInvalidDirective
	}
}

// inject feeds text and appends it to the response.
func (lp *Loop) inject(text string, res *Result) error {
	if err := lp.feed(text); err != nil {
		return err
	}
	res.emit(text)
	return nil
}

func (lp *Loop) feed(text string) error {
	toks, err := lp.tok.Tokenize(text, false)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return nil
	}
	return lp.eng.Decode(engine.Batch{Tokens: toks, Text: text})
}

// ban forwards the first token of each avoided string to engines that
// support per-sample bans. Others ignore the list.
func (lp *Loop) ban(avoid []string) error {
	b, ok := lp.eng.(engine.Banner)
	if !ok || len(avoid) == 0 {
		return nil
	}
	toks := make([]engine.Token, 0, len(avoid))
	for _, a := range avoid {
		t, err := lp.tok.Tokenize(a, false)
		if err != nil {
			return err
		}
		if len(t) > 0 {
			toks = append(toks, t[0])
		}
	}
	b.BanNext(toks)
	return nil
}

func (r *Result) emit(text string) {
	r.Response += text
	r.Fragments = append(r.Fragments, text)
}
