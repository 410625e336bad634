// Package reqcontext implements the per-request key/value bag (spec.md §3
// Context) shared across the supergraph, execution, and subgraph pipeline
// stages. It is deliberately not context.Context: the standard library
// context carries cancellation and deadlines, which the pipeline already
// threads through a plain context.Context argument; reqcontext.Context
// carries request-scoped correlation state plugins read and write across
// stage boundaries.
package reqcontext

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context is a concurrency-safe string-keyed bag created once per request.
type Context struct {
	mu        sync.RWMutex
	entries   map[string]interface{}
	id        string
	createdAt time.Time
}

// New creates a Context stamped with a fresh correlation id and the current
// time (§3: "used to correlate plugin decisions across stages and to
// time-stamp request entry").
func New() *Context {
	return &Context{
		entries:   make(map[string]interface{}),
		id:        uuid.NewString(),
		createdAt: time.Now(),
	}
}

// ID returns the request's correlation id.
func (c *Context) ID() string { return c.id }

// CreatedAt returns when the Context was created.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// Elapsed is a convenience for time.Since(CreatedAt()), used to timestamp
// fetch spans relative to request entry.
func (c *Context) Elapsed() time.Duration { return time.Since(c.createdAt) }

// Set stores value under key, overwriting any prior entry.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Get retrieves the value stored under key.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// GetOrSetDefault returns the existing value at key, or stores and returns
// def if absent. Used by plugins that lazily initialize per-request state.
func (c *Context) GetOrSetDefault(key string, def interface{}) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v
	}
	c.entries[key] = def
	return def
}
