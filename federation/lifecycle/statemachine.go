package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// State is the lifecycle's externally-observable phase, mirroring the
// teacher-language State enum (Startup/Running/Stopped/Errored) used to
// notify a caller waiting for the gateway to become ready.
type State int

const (
	Startup State = iota
	Running
	Stopped
	Errored
)

func (s State) String() string {
	switch s {
	case Startup:
		return "startup"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Factory is the immutable, hot-swappable bundle of everything a request
// needs to be served: a composed supergraph, its plan adapter, and the
// subgraph services wired to it. It plays the same role the teacher's
// schemaStore/executionEngine pair plays in gateway/engine.go, generalized
// behind an interface so the state machine doesn't depend on the gateway
// package (which, in turn, depends on lifecycle to drive it — an import
// cycle this interface avoids).
type Factory interface {
	// Closed once this Factory is no longer the active one and no new
	// requests will be routed to it. A handler that already started using
	// it may keep running; Close only prevents new requests.
	Close() error
}

// Builder constructs a new Factory from the latest configuration and
// schema documents the state machine has accumulated.
type Builder func(ctx context.Context, config []byte, schema string) (Factory, error)

// StateMachine holds the current Factory behind an atomic.Value so request
// handlers reading it never observe a torn or partially-built value, and
// reacts to a merged Event stream to decide when to (re)build one.
type StateMachine struct {
	build   Builder
	current atomic.Value // holds Factory
	state   atomic.Int32
	onState func(State)
}

// New creates a StateMachine that uses build to construct a Factory
// whenever enough configuration/schema state has accumulated. onState, if
// non-nil, is invoked on every state transition (Startup/Running/
// Stopped/Errored) — the gateway's HTTP server uses it to know when to
// start accepting connections.
func New(build Builder, onState func(State)) *StateMachine {
	sm := &StateMachine{build: build, onState: onState}
	sm.setState(Startup)
	return sm
}

// Current returns the active Factory, or nil before the first successful
// build.
func (sm *StateMachine) Current() Factory {
	f, _ := sm.current.Load().(Factory)
	return f
}

// State returns the current lifecycle phase.
func (sm *StateMachine) State() State {
	return State(sm.state.Load())
}

func (sm *StateMachine) setState(s State) {
	sm.state.Store(int32(s))
	if sm.onState != nil {
		sm.onState(s)
	}
}

// Run consumes events until the stream closes (which Merge guarantees
// happens only after a terminal Shutdown event), rebuilding the active
// Factory whenever both a configuration and a schema document have been
// seen at least once, and on every subsequent update to either. It
// returns nil on a clean Shutdown and a non-nil error if the first
// Factory build fails — following the teacher's rule that a startup
// failure on the very first build is fatal, while a failed *reload*
// degrades by keeping the previous Factory active and logging the error.
func (sm *StateMachine) Run(ctx context.Context, events <-chan Event) error {
	var (
		config     []byte
		schema     string
		haveConfig bool
		haveSchema bool
		builtOnce  bool
	)

	rebuild := func() error {
		if !haveConfig || !haveSchema {
			return nil
		}
		factory, err := sm.build(ctx, config, schema)
		if err != nil {
			if !builtOnce {
				sm.setState(Errored)
				return fmt.Errorf("lifecycle: initial build failed: %w", err)
			}
			slog.Error("lifecycle: reload failed, keeping previous factory", "error", err)
			return nil
		}
		if prev := sm.Current(); prev != nil {
			_ = prev.Close()
		}
		sm.current.Store(factory)
		builtOnce = true
		sm.setState(Running)
		return nil
	}

	for ev := range events {
		switch ev.Kind {
		case UpdateConfiguration:
			config = ev.Configuration
			haveConfig = true
			if err := rebuild(); err != nil {
				return err
			}
		case NoMoreConfiguration:
			// No further configuration updates are coming; nothing to do
			// beyond what UpdateConfiguration already triggered.
		case UpdateSchema:
			schema = ev.Schema
			haveSchema = true
			if err := rebuild(); err != nil {
				return err
			}
		case NoMoreSchema:
		case Shutdown:
			sm.setState(Stopped)
			if prev := sm.Current(); prev != nil {
				return prev.Close()
			}
			return nil
		}
	}
	sm.setState(Stopped)
	return nil
}
