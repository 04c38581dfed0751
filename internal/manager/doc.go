// Package manager hosts many steering sessions behind one process. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters, Close.
//   - config.go: Config and package defaults; NewWithConfig applies defaults.
//   - types.go: internal session table entries and states.
//   - errors.go: error types and helpers (IsModelNotFound, IsSessionNotFound, ...).
//   - helpers.go: small utilities (model lookup, memory estimation).
//   - create.go: CreateSession, which resolves a model, makes room and loads it.
//   - evict.go: LRU eviction of idle sessions to fit the memory budget.
//   - unload.go: CloseSession with a bounded drain.
//   - ops.go: per-session operations (prompt, capture, restore, clear).
//   - status_report.go: Status and per-session views.
//   - events.go, eventpub_*.go: lifecycle events and publishers.
//
// Each session serializes its own operations (see package session); the
// manager only guards its table and the memory accounting. Engines come from
// an engine.Loader: llama.cpp when built with -tags=llama, otherwise the toy
// engine if configured.
package manager
