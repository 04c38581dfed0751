// Package chattmpl renders chat messages into the prompt layout a model
// family was trained on. Engines use it to implement ApplyChatTemplate.
package chattmpl

import (
	"strings"

	"steerd/internal/engine"
)

// Family names accepted by Render.
const (
	ChatML  = "chatml"
	Llama3  = "llama3"
	Phi3    = "phi3"
	Mistral = "mistral"
	Gemma   = "gemma"
)

var aliases = map[string]string{
	"chatml":  ChatML,
	"qwen":    ChatML,
	"qwen2":   ChatML,
	"qwen3":   ChatML,
	"lfm2":    ChatML,
	"llama3":  Llama3,
	"llama-3": Llama3,
	"phi3":    Phi3,
	"phi-3":   Phi3,
	"mistral": Mistral,
	"mixtral": Mistral,
	"gemma":   Gemma,
	"gemma2":  Gemma,
	"gemma3":  Gemma,
}

// Normalize maps a family name or alias to its canonical family. ok=false
// means the family is unknown.
func Normalize(family string) (string, bool) {
	f, ok := aliases[strings.ToLower(strings.TrimSpace(family))]
	return f, ok
}

// Families lists the canonical family names.
func Families() []string {
	return []string{ChatML, Gemma, Llama3, Mistral, Phi3}
}

// Render returns (output, ok). ok=false means the family is unsupported.
func Render(family string, msgs []engine.Message, addAssistant bool) (string, bool) {
	f, ok := Normalize(family)
	if !ok {
		return "", false
	}
	switch f {
	case Llama3:
		return renderLlama3(msgs, addAssistant), true
	case Phi3:
		return renderPhi3(msgs, addAssistant), true
	case Mistral:
		return renderMistral(msgs, addAssistant), true
	case Gemma:
		return renderGemma(msgs, addAssistant), true
	default:
		return renderChatML(msgs, addAssistant), true
	}
}

// Apply renders into buf with the engine ApplyChatTemplate contract: the
// return value is the full rendered length (which may exceed len(buf), in
// which case buf holds a truncated prefix), or -1 for an unknown family.
func Apply(family string, msgs []engine.Message, addAssistant bool, buf []byte) int {
	out, ok := Render(family, msgs, addAssistant)
	if !ok {
		return -1
	}
	copy(buf, out)
	return len(out)
}

func renderChatML(msgs []engine.Message, addAssistant bool) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("<|im_start|>")
		b.WriteString(m.Role)
		b.WriteString("\n")
		b.WriteString(m.Content)
		b.WriteString("<|im_end|>\n")
	}
	if addAssistant {
		b.WriteString("<|im_start|>assistant\n")
	}
	return b.String()
}

func renderLlama3(msgs []engine.Message, addAssistant bool) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("<|start_header_id|>")
		b.WriteString(m.Role)
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("<|eot_id|>")
	}
	if addAssistant {
		b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	}
	return b.String()
}

func renderPhi3(msgs []engine.Message, addAssistant bool) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("<|")
		b.WriteString(m.Role)
		b.WriteString("|>\n")
		b.WriteString(m.Content)
		b.WriteString("<|end|>\n")
	}
	if addAssistant {
		b.WriteString("<|assistant|>\n")
	}
	return b.String()
}

// renderMistral folds a leading system message into the first user turn;
// the format has no system role. The generation prompt is implicit after
// [/INST].
func renderMistral(msgs []engine.Message, _ bool) string {
	var b strings.Builder
	system := ""
	if len(msgs) > 0 && msgs[0].Role == "system" {
		system = strings.TrimSpace(msgs[0].Content)
		msgs = msgs[1:]
	}
	for _, m := range msgs {
		switch m.Role {
		case "user":
			b.WriteString("[INST] ")
			if system != "" {
				b.WriteString(system)
				b.WriteString("\n\n")
				system = ""
			}
			b.WriteString(strings.TrimSpace(m.Content))
			b.WriteString(" [/INST]")
		case "assistant":
			b.WriteString(m.Content)
			b.WriteString("</s>")
		}
	}
	return b.String()
}

func renderGemma(msgs []engine.Message, addAssistant bool) string {
	var b strings.Builder
	system := ""
	if len(msgs) > 0 && msgs[0].Role == "system" {
		system = strings.TrimSpace(msgs[0].Content)
		msgs = msgs[1:]
	}
	for _, m := range msgs {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		b.WriteString("<start_of_turn>")
		b.WriteString(role)
		b.WriteString("\n")
		if system != "" && role == "user" {
			b.WriteString(system)
			b.WriteString("\n\n")
			system = ""
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("<end_of_turn>\n")
	}
	if addAssistant {
		b.WriteString("<start_of_turn>model\n")
	}
	return b.String()
}
