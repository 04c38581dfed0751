package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	// Model id; empty selects the server default.
	// example: qwen2-1_5b-instruct-q4_k_m
	Model string `json:"model,omitempty" example:"qwen2-1_5b-instruct-q4_k_m"`
	// Sampler seed; 0 draws a random one.
	// example: 42
	Seed uint32 `json:"seed,omitempty" example:"42"`
	// Context window in tokens; 0 uses the server default.
	// example: 4096
	ContextSize int `json:"context_size,omitempty" example:"4096"`
	// Chat template family override.
	// example: chatml
	Template string `json:"template,omitempty" example:"chatml"`
	// System message prepended to every query.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Text appended to every user query.
	UserSuffix string `json:"user_suffix,omitempty"`
}

// SessionInfo describes a live session.
type SessionInfo struct {
	// Session id (UUIDv7).
	// example: 01920f3e-7a4b-7c1d-8e2f-3a4b5c6d7e8f
	ID string `json:"id" example:"01920f3e-7a4b-7c1d-8e2f-3a4b5c6d7e8f"`
	// Model id the session was created from.
	ModelID string `json:"model_id"`
	// Lifecycle state (ready, draining).
	// example: ready
	State string `json:"state" example:"ready"`
	// Resolved sampler seed.
	Seed uint32 `json:"seed"`
	// Context window in tokens.
	ContextSize int `json:"context_size"`
	// Chat template family in use.
	Template string `json:"template"`
	// Creation time (unix seconds).
	Created int64 `json:"created_unix"`
	// Last time this session served an operation (unix seconds).
	LastUsed int64 `json:"last_used_unix"`
	// Estimated memory in MB.
	EstMB int `json:"est_mb"`
	// Queued operations.
	QueueLen int `json:"queue_len"`
	// 1 while an operation holds the session.
	Inflight int `json:"inflight"`
	// Maximum queued operations before backpressure triggers.
	MaxQueueDepth int `json:"max_queue_depth"`
}

// PromptRequest is the body of POST /sessions/{id}/prompt. Without rules
// every sample is accepted until end of sequence or max_tokens.
type PromptRequest struct {
	// User query; it is formatted with the session's chat template.
	// example: How are you?
	Query string `json:"query" example:"How are you?"`
	// Text forced before the first sampled token.
	Prefix string `json:"prefix,omitempty"`
	// Upper bound on accepted samples (0 for none).
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Steering rules.
	Rules []Rule `json:"rules,omitempty"`
	// Emit one NDJSON line per sample and directive.
	Trace bool `json:"trace,omitempty"`
}

// PromptEvent is one NDJSON line of a prompt stream. Sample lines carry
// the proposed text and the directive applied to it; the last line has
// Done set and the final content.
type PromptEvent struct {
	Step      int            `json:"step,omitempty"`
	Text      string         `json:"text,omitempty"`
	Token     int32          `json:"token,omitempty"`
	EOS       bool           `json:"eos,omitempty"`
	Directive string         `json:"directive,omitempty"`
	Done      bool           `json:"done,omitempty"`
	Content   string         `json:"content,omitempty"`
	Fragments []string       `json:"fragments,omitempty"`
	Steps     int            `json:"steps,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// CaptureStateRequest is the body of POST /sessions/{id}/state.
type CaptureStateRequest struct {
	// Text primed through the chat template before the snapshot.
	// example: The codeword is zanzibar.
	Priming string `json:"priming" example:"The codeword is zanzibar."`
	// Include sampler state (RNG and penalties) in the snapshot.
	IncludeSampler bool `json:"include_sampler,omitempty"`
}

// StateInfo describes a stored state.
type StateInfo struct {
	// State id (UUIDv7).
	ID string `json:"id"`
	// Hex sha256 of the blob.
	Digest string `json:"digest"`
	// Blob size in bytes.
	Size int `json:"size"`
	// Model path the state was captured from.
	Model string `json:"model"`
	// Whether sampler state is included.
	Sampler bool `json:"sampler"`
	// Capture time (unix seconds).
	Created int64 `json:"created_unix"`
}

// RestoreStateRequest is the body of POST /sessions/{id}/restore.
type RestoreStateRequest struct {
	// State id returned by POST /sessions/{id}/state.
	StateID string `json:"state_id"`
}

// StatesResponse wraps GET /states.
type StatesResponse struct {
	States []StateInfo `json:"states"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Live sessions.
	Sessions []SessionInfo `json:"sessions"`
	// Memory budget in MB across all sessions (0 for none).
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated used memory in MB.
	// example: 2048
	UsedMB int `json:"used_est_mb" example:"2048"`
	// Reserved memory margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Backend in use (llama or toy).
	// example: llama
	Backend string `json:"backend" example:"llama"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
	// Sessions evicted to free memory.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Sessions created.
	LoadsTotal uint64 `json:"loads_total"`
	// Sessions currently draining.
	DrainingCount int `json:"draining_count"`
}
