// Package lifecycle drives the gateway's startup/reconfiguration/shutdown
// behavior: a merged stream of configuration, schema, and shutdown events
// feeding a small state machine that hot-swaps the request-handling
// factory without dropping in-flight requests. Grounded in
// original_source/apollo-router/src/lib.rs's Event enum and
// generate_event_stream/StateMachine — reworked for Go channels instead
// of futures::Stream combinators.
package lifecycle

import (
	"context"
)

// EventKind discriminates an Event's payload.
type EventKind int

const (
	UpdateConfiguration EventKind = iota
	NoMoreConfiguration
	UpdateSchema
	NoMoreSchema
	Shutdown
)

// Event is one item of the merged lifecycle stream.
type Event struct {
	Kind          EventKind
	Configuration []byte // raw YAML/JSON document
	Schema        string // composed or raw SDL text
}

// Source produces a stream of Events on ch until ctx is cancelled or the
// source is exhausted, at which point Run returns. Run never closes ch:
// Merge hands the same channel to every source. A finite source (e.g. one
// config file loaded once) sends its value(s) and then returns
// immediately; a watching source (poll-based file watch) keeps sending
// until ctx is done.
type Source interface {
	Run(ctx context.Context, ch chan<- Event)
}

// Merge fans every source's events into one channel, appending a
// NoMoreConfiguration/NoMoreSchema marker is the Source's own
// responsibility (mirrors the teacher-language version's
// `.chain(stream::iter(vec![NoMore...]))`); Merge only fans in and, once
// every source's Run has returned or ctx is done, emits a final
// Shutdown event so the state machine always has a terminal transition to
// make. A Shutdown seen from any source short-circuits the rest: the
// merged stream stops emitting non-Shutdown events and ends with exactly
// one Shutdown.
func Merge(ctx context.Context, sources ...Source) <-chan Event {
	out := make(chan Event, 1)
	in := make(chan Event)

	ctx, cancel := context.WithCancel(ctx)

	done := make(chan struct{}, len(sources))
	for _, s := range sources {
		s := s
		go func() {
			s.Run(ctx, in)
			done <- struct{}{}
		}()
	}

	go func() {
		defer cancel()
		defer close(out)

		remaining := len(sources)
		shutdownSeen := false
		for remaining > 0 {
			select {
			case ev, ok := <-in:
				if !ok {
					continue
				}
				if shutdownSeen {
					continue
				}
				if ev.Kind == Shutdown {
					shutdownSeen = true
					out <- ev
					return
				}
				out <- ev
			case <-done:
				remaining--
			case <-ctx.Done():
				if !shutdownSeen {
					out <- Event{Kind: Shutdown}
				}
				return
			}
		}
		if !shutdownSeen {
			out <- Event{Kind: Shutdown}
		}
	}()

	return out
}
