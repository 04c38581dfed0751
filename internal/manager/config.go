package manager

import (
	"time"

	"github.com/rs/zerolog"

	"steerd/internal/engine"
	"steerd/internal/engine/llamacpp"
	"steerd/internal/statestore"
	"steerd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Registry     []types.Model
	DefaultModel string
	// Backend names the engine family for status output.
	Backend string
	// Loader creates engines. Defaults to the llama.cpp loader.
	Loader engine.Loader
	// Params are the engine parameters for new sessions; requests may
	// override the seed, context size and template.
	Params       engine.Params
	SystemPrompt string
	UserSuffix   string
	Horizon      int

	BudgetMB      int
	MarginMB      int
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	// States stores captured states. Defaults to an in-memory store.
	States    statestore.Store
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// NewWithConfig constructs a Manager from Config.
func NewWithConfig(cfg Config) *Manager {
	m := &Manager{
		registry:     append([]types.Model(nil), cfg.Registry...),
		defaultModel: cfg.DefaultModel,
		backend:      cfg.Backend,
		loader:       cfg.Loader,
		params:       cfg.Params,
		systemPrompt: cfg.SystemPrompt,
		userSuffix:   cfg.UserSuffix,
		horizon:      cfg.Horizon,
		budgetMB:     cfg.BudgetMB,
		marginMB:     cfg.MarginMB,
		states:       cfg.States,
		publisher:    cfg.Publisher,
		log:          cfg.Logger,
		sessions:     make(map[string]*entry),
		startTime:    time.Now(),
	}
	if m.loader == nil {
		m.loader = llamacpp.Loader{}
		if m.backend == "" {
			m.backend = "llama"
		}
	}
	if m.states == nil {
		m.states = statestore.NewMemory()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	return m
}
