// File: control/config.go
// Package control holds the ambient stack: static/dynamic configuration,
// metrics, debug probes, and hot-reload hooks shared by facade and cmd/.
// License: Apache-2.0
//
// Config follows the teacher's facade.Config / control/config.go shape —
// a plain struct with a Default*() constructor, with free-form knobs
// still reachable through ConfigStore.SetConfig for hot values — widened
// with the transaction-engine knobs spec.md §9 calls out (AuxMax,
// MaxIOVec, HeaderAlignment) alongside the usual buffer/worker/listen
// fields.

package control

import (
	"log"
	"sync"
	"time"
)

// Config is the static configuration record for one dmsgcored process,
// with its defaults in DefaultConfig. facade.DefaultConfig copies
// RxBufSize and TxBufSize from it; no package reads the other fields
// (cmd/dmsgcored's flags populate facade.Config, the parser's aux limit
// is ioq.AuxMax, the write batch bound is iocom.MaxIOVec, and verbosity
// and logging are set through facade.Config and iocom.Config).
type Config struct {
	// ListenAddr is the address dmsgcored listens on, or the address a
	// client dials; empty means the caller supplies its own net.Conn.
	ListenAddr string

	// RxBufSize / TxBufSize seed each IOCOM's IOQ capacity.
	RxBufSize int
	TxBufSize int

	// AuxMax is an aux_bytes ceiling value (the FIELD-error limit named
	// in spec.md §6); the parser enforces ioq.AuxMax instead.
	AuxMax uint32

	// MaxIOVec is a per-write message batch size; the writer uses
	// iocom.MaxIOVec instead.
	MaxIOVec int

	// HeaderAlignment is the 64-byte wire alignment unit.
	HeaderAlignment int

	// PollTimeout is an idle housekeeping interval; the IO core has no
	// periodic housekeeping and does not read it.
	PollTimeout time.Duration

	// WorkerCount is an auxiliary worker-pool size; the facade starts no
	// such pool and does not read it.
	WorkerCount int

	// Verbose is a debug-verbosity flag standing in for the original's
	// DMsgDebugOpt; the RX/TX log lines are gated by iocom.Config.Verbose.
	Verbose bool

	// Logger is a log destination, log.Default() in DefaultConfig; IOCOM
	// logging goes to iocom.Config.Logger.
	Logger *log.Logger
}

// DefaultConfig returns the knobs dmsgcored runs with absent any flags
// or env overrides.
func DefaultConfig() Config {
	return Config{
		RxBufSize:       64 * 1024,
		TxBufSize:       64 * 1024,
		AuxMax:          1 << 20,
		MaxIOVec:        64,
		HeaderAlignment: 64,
		PollTimeout:     5 * time.Second,
		WorkerCount:     1,
		Logger:          log.Default(),
	}
}

// ConfigStore is a dynamic key/value map layered over the static Config,
// for values a running process accepts changes to without a restart
// (e.g. a feature flag flipped by an operator).
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	snap := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		snap[k] = v
	}
	return snap
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
