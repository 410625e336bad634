package lifecycle

import (
	"context"
	"os"
	"time"
)

// FileSource polls a file's mtime/size at interval and emits UpdateConfiguration
// (or UpdateSchema, depending on kind) whenever its contents change,
// returning when ctx is done. A missing or unreadable file emits nothing;
// there is no debounce delay and no NoMore event. The pack carries no filesystem-watch
// library (no fsnotify in any example repo's go.mod), so this reproduces
// watch semantics with a stat-loop, the same tradeoff the teacher's own
// schema_fetcher.go makes by polling rather than subscribing to push
// notifications from subgraphs.
type FileSource struct {
	Path     string
	Interval time.Duration
	Kind     EventKind // UpdateConfiguration or UpdateSchema
}

func (s FileSource) Run(ctx context.Context, ch chan<- Event) {
	interval := s.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var lastModTime time.Time
	var lastSize int64
	first := true

	emit := func() bool {
		info, err := os.Stat(s.Path)
		if err != nil {
			return true
		}
		if !first && info.ModTime().Equal(lastModTime) && info.Size() == lastSize {
			return true
		}
		first = false
		lastModTime = info.ModTime()
		lastSize = info.Size()

		data, err := os.ReadFile(s.Path)
		if err != nil {
			return true
		}

		ev := Event{Kind: s.Kind}
		if s.Kind == UpdateSchema {
			ev.Schema = string(data)
		} else {
			ev.Configuration = data
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return false
		}
		return true
	}

	if !emit() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !emit() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// StaticSource emits a single fixed Event and then finishes — used for a
// configuration or schema that is provided once at startup (e.g. from a
// CLI flag) and never reloaded.
type StaticSource struct {
	Event Event
}

func (s StaticSource) Run(ctx context.Context, ch chan<- Event) {
	select {
	case ch <- s.Event:
	case <-ctx.Done():
	}
}

// ChannelSource adapts an externally-driven channel of Events (e.g. the
// registry package's push-registration handler) into a Source.
type ChannelSource struct {
	Events <-chan Event
}

func (s ChannelSource) Run(ctx context.Context, ch chan<- Event) {
	for {
		select {
		case ev, ok := <-s.Events:
			if !ok {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
