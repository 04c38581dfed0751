package types

// Model represents a loadable model file on disk.
type Model struct {
	// Stable identifier for the model.
	// example: qwen2-1_5b-instruct-q4_k_m
	ID string `json:"id" example:"qwen2-1_5b-instruct-q4_k_m"`
	// Human-friendly name.
	// example: Qwen2 1.5B Instruct (Q4_K_M)
	Name string `json:"name" example:"Qwen2 1.5B Instruct (Q4_K_M)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen2-1_5b-instruct-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/qwen2-1_5b-instruct-q4_k_m.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Model family; selects the chat template.
	// example: qwen2
	Family string `json:"family,omitempty" example:"qwen2"`
	// Chat template family derived from Family.
	// example: chatml
	Template string `json:"template,omitempty" example:"chatml"`
}

// Rule is one steering rule. See PromptRequest.
type Rule struct {
	// One of force_after, replace, avoid, stop.
	// example: force_after
	Kind string `json:"kind" example:"force_after"`
	// Text the response must end with for the rule to fire.
	// example: I'm doing
	Match string `json:"match" example:"I'm doing"`
	// Text spliced in (force_after) or substituted (replace).
	// example:  poorly actually,
	Text string `json:"text,omitempty" example:" poorly actually,"`
	// Strings the next sample should not start with (avoid).
	Avoid []string `json:"avoid,omitempty"`
}
