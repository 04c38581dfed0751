// Package policy builds steering decision functions from declarative rules,
// so steered generation can be configured from flags, files or HTTP bodies.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"steerd/internal/steering"
)

// Rule kinds.
const (
	KindForceAfter = "force_after"
	KindReplace    = "replace"
	KindAvoid      = "avoid"
	KindStop       = "stop"
)

// Rule is one trigger. Match is compared against the end of the response.
//
//   - force_after: once the response would end with Match, accept the sample
//     and splice Text after it. Fires once per prompt.
//   - replace: when the response ends with Match, roll it back and put Text
//     in its place.
//   - avoid: when the response would end with Match, accept the sample and
//     steer the next sample away from Avoid.
//   - stop: complete instead of accepting a sample that would make the
//     response end with Match.
type Rule struct {
	Kind  string   `json:"kind" yaml:"kind" toml:"kind"`
	Match string   `json:"match" yaml:"match" toml:"match"`
	Text  string   `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`
	Avoid []string `json:"avoid,omitempty" yaml:"avoid,omitempty" toml:"avoid,omitempty"`
}

// Policy is a set of rules plus generation bounds. The zero Policy accepts
// every sample until end of sequence.
type Policy struct {
	// Prefix is forced before the first sampled token.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	// MaxTokens bounds the number of accepted samples plus replacements
	// (0 for no bound).
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	Rules     []Rule `json:"rules,omitempty" yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// Validate checks rule kinds and required fields.
func (p Policy) Validate() error {
	if p.MaxTokens < 0 {
		return errors.New("max_tokens must be >= 0")
	}
	for i, r := range p.Rules {
		if r.Match == "" {
			return fmt.Errorf("rule %d: match is required", i)
		}
		switch r.Kind {
		case KindForceAfter, KindReplace:
			if r.Text == "" {
				return fmt.Errorf("rule %d (%s): text is required", i, r.Kind)
			}
			// A replacement carrying its own match would trigger itself forever.
			if r.Kind == KindReplace && strings.Contains(r.Text, r.Match) {
				return fmt.Errorf("rule %d (replace): text %q contains match %q", i, r.Text, r.Match)
			}
		case KindAvoid:
			if len(r.Avoid) == 0 {
				return fmt.Errorf("rule %d (avoid): avoid list is required", i)
			}
		case KindStop:
		default:
			return fmt.Errorf("rule %d: unknown kind %q", i, r.Kind)
		}
	}
	return nil
}

// Decider returns a fresh decision function for one prompt. Replace rules
// are checked first against the response so far, so text they match never
// survives into the result, not even at end of sequence or at the token
// bound. Then end of sequence and MaxTokens complete, and the remaining
// rules are checked in the order stop, force_after, avoid; the first match
// wins and everything else is accepted.
//
// Replacements count toward MaxTokens. At the bound a replacement still
// fires unless the previous decision was already one.
func (p Policy) Decider() steering.DecisionFunc {
	fired := make([]bool, len(p.Rules))
	started := p.Prefix == ""
	spent := 0
	replaced := false
	return func(s steering.TokenSample) steering.Directive {
		if !started {
			started = true
			return steering.Force(p.Prefix)
		}
		capped := p.MaxTokens > 0 && spent >= p.MaxTokens
		if !(capped && replaced) {
			for _, r := range p.Rules {
				if r.Kind == KindReplace && strings.HasSuffix(s.Response, r.Match) {
					spent++
					replaced = true
					return steering.ReverseAndForce(r.Match, r.Text)
				}
			}
		}
		replaced = false
		if s.EOS || capped {
			return steering.Complete()
		}
		next := s.Response + s.Text
		for _, r := range p.Rules {
			if r.Kind == KindStop && strings.HasSuffix(next, r.Match) {
				return steering.Complete()
			}
		}
		spent++
		for i, r := range p.Rules {
			if r.Kind == KindForceAfter && !fired[i] && strings.HasSuffix(next, r.Match) {
				fired[i] = true
				return steering.AcceptAndForce(s.Text, r.Text)
			}
		}
		for _, r := range p.Rules {
			if r.Kind == KindAvoid && strings.HasSuffix(next, r.Match) {
				return steering.AcceptAndAvoid(s.Text, r.Avoid)
			}
		}
		return steering.Accept(s)
	}
}

// ParseRule parses the compact flag form "match=>text" (force_after,
// replace), "match=>a|b" (avoid) or "match" (stop).
func ParseRule(kind, arg string) (Rule, error) {
	r := Rule{Kind: kind}
	match, rest, hasArrow := strings.Cut(arg, "=>")
	r.Match = match
	switch kind {
	case KindStop:
		r.Match = arg
	case KindAvoid:
		if !hasArrow {
			return Rule{}, fmt.Errorf("avoid rule %q: want match=>a|b", arg)
		}
		r.Avoid = strings.Split(rest, "|")
	case KindForceAfter, KindReplace:
		if !hasArrow {
			return Rule{}, fmt.Errorf("%s rule %q: want match=>text", kind, arg)
		}
		r.Text = rest
	default:
		return Rule{}, fmt.Errorf("unknown rule kind %q", kind)
	}
	if r.Match == "" {
		return Rule{}, fmt.Errorf("%s rule %q: empty match", kind, arg)
	}
	return r, nil
}

// LoadFile reads a policy from YAML, JSON or TOML by file extension.
func LoadFile(path string) (Policy, error) {
	var p Policy
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &p)
	case ".json":
		err = json.Unmarshal(b, &p)
	case ".toml":
		err = toml.Unmarshal(b, &p)
	default:
		return p, fmt.Errorf("unsupported policy extension: %s", filepath.Ext(path))
	}
	if err != nil {
		return p, err
	}
	return p, p.Validate()
}
