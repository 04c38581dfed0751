package steering

import (
	"fmt"
	"strings"

	"steerd/internal/engine"
)

// Kind tags a Directive variant. The zero Kind is invalid.
type Kind int

const (
	kindInvalid Kind = iota
	KindStart
	KindAccept
	KindForce
	KindAcceptAndForce
	KindAcceptAndAvoid
	KindReverseAndForce
	KindComplete
)

var kindNames = [...]string{
	kindInvalid:         "invalid",
	KindStart:           "start",
	KindAccept:          "accept",
	KindForce:           "force",
	KindAcceptAndForce:  "accept_and_force",
	KindAcceptAndAvoid:  "accept_and_avoid",
	KindReverseAndForce: "reverse_and_force",
	KindComplete:        "complete",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if Kind(k) != kindInvalid && name == s {
			return Kind(k), true
		}
	}
	return kindInvalid, false
}

// TokenSample is what the engine would emit next if left alone. Response is
// the accumulated response before this sample.
type TokenSample struct {
	Text     string
	Token    engine.Token
	Response string
	EOS      bool
}

// Directive is the caller's instruction for the most recent sample. Build
// one with the constructors below; the zero value is rejected by the loop.
type Directive struct {
	kind   Kind
	sample TokenSample
	text   string
	forced string
	avoid  []string
}

// Start is the loop's initial directive: sample without applying anything.
func Start() Directive { return Directive{kind: KindStart} }

// Accept takes the engine's proposal as is.
func Accept(s TokenSample) Directive { return Directive{kind: KindAccept, sample: s} }

// Force injects text the engine did not propose.
func Force(text string) Directive { return Directive{kind: KindForce, text: text} }

// AcceptAndForce injects text and then splices forced after it.
func AcceptAndForce(text, forced string) Directive {
	return Directive{kind: KindAcceptAndForce, text: text, forced: forced}
}

// AcceptAndAvoid injects text; avoid names strings the next sample should
// not start with. Only engines that implement engine.Banner honor it.
func AcceptAndAvoid(text string, avoid []string) Directive {
	return Directive{kind: KindAcceptAndAvoid, text: text, avoid: append([]string(nil), avoid...)}
}

// ReverseAndForce rolls the engine back by the tokens of bad and injects
// forced in its place. The response replaces the first occurrence of bad.
func ReverseAndForce(bad, forced string) Directive {
	return Directive{kind: KindReverseAndForce, text: bad, forced: forced}
}

// Complete ends the loop.
func Complete() Directive { return Directive{kind: KindComplete} }

func (d Directive) Kind() Kind { return d.kind }

// Sample is the sample carried by Accept.
func (d Directive) Sample() TokenSample { return d.sample }

// Text is the injected text (Force, AcceptAndForce, AcceptAndAvoid) or the
// text to reverse (ReverseAndForce).
func (d Directive) Text() string { return d.text }

// Forced is the spliced text of AcceptAndForce and ReverseAndForce.
func (d Directive) Forced() string { return d.forced }

// Avoid returns a copy of the AcceptAndAvoid list.
func (d Directive) Avoid() []string { return append([]string(nil), d.avoid...) }

func (d Directive) String() string {
	switch d.kind {
	case KindAccept:
		return fmt.Sprintf("accept(%q)", d.sample.Text)
	case KindForce:
		return fmt.Sprintf("force(%q)", d.text)
	case KindAcceptAndForce, KindReverseAndForce:
		return fmt.Sprintf("%s(%q, %q)", d.kind, d.text, d.forced)
	case KindAcceptAndAvoid:
		return fmt.Sprintf("accept_and_avoid(%q, [%s])", d.text, strings.Join(d.avoid, ", "))
	default:
		return d.kind.String()
	}
}

// DecisionFunc maps each sample to the next directive. It runs while the
// session's write turn is held and must not call back into the session.
type DecisionFunc func(TokenSample) Directive
