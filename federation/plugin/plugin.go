// Package plugin implements the gateway's customization mechanism: a
// process-wide registry of named factories, configured through a
// "group.name" sub-document of the gateway's YAML configuration and
// instantiated once at startup (and again on every config reload) to wrap
// the supergraph, execution, and subgraph stages of the request pipeline.
// Grounded in original_source/apollo-router/src/plugin/mod.rs's
// PLUGIN_REGISTRY/register_plugin!/Plugin trait, reworked for Go: there is
// no load-time constructor attribute, so plugins register themselves from
// an init() func in their own file instead of a macro-generated ctor.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/n9te9/federation-gateway/federation/pipeline"
)

// Plugin hooks into one or more pipeline stages. Every method has a
// no-op-safe default behavior: a plugin that only cares about, say,
// subgraph calls embeds Base and overrides SubgraphService alone.
type Plugin interface {
	SupergraphService(next pipeline.SupergraphService) pipeline.SupergraphService
	ExecutionService(next pipeline.ExecutionService) pipeline.ExecutionService
	SubgraphService(subgraphName string, next pipeline.SubgraphService) pipeline.SubgraphService
}

// Base gives a plugin pass-through implementations for every hook it
// doesn't care to override, the same role Plugin's default trait methods
// play in the teacher-language version.
type Base struct{}

func (Base) SupergraphService(next pipeline.SupergraphService) pipeline.SupergraphService { return next }
func (Base) ExecutionService(next pipeline.ExecutionService) pipeline.ExecutionService     { return next }
func (Base) SubgraphService(_ string, next pipeline.SubgraphService) pipeline.SubgraphService {
	return next
}

// Factory builds a Plugin from its raw configuration sub-document.
type Factory func(ctx context.Context, rawConfig json.RawMessage) (Plugin, error)

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
)

// Register installs factory under qualified name "group.name" (or just
// "name" when group is empty). Called from each plugin package's init(),
// never at request time — the registry is built once before the gateway
// starts accepting traffic.
func Register(group, name string, factory Factory) {
	qualified := name
	if group != "" {
		qualified = group + "." + name
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[qualified]; exists {
		panic(fmt.Sprintf("plugin: %q already registered", qualified))
	}
	factories[qualified] = factory
}

// Names returns every registered plugin name, sorted, so callers that
// build the pipeline deterministically (see BuildChain) don't depend on
// map iteration order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the factory registered under name, if any.
func Lookup(name string) (Factory, bool) {
	mu.Lock()
	defer mu.Unlock()
	f, ok := factories[name]
	return f, ok
}

// Config is one "group.name: {...}" entry of the gateway's plugins
// configuration section, decoded with unknown-field rejection by the
// caller (gateway settings unmarshalling, not this package) so a
// misspelled plugin name fails fast instead of silently doing nothing.
type Config struct {
	Name string
	Raw  json.RawMessage
}

// Instantiate builds one Plugin per entry in configs, in the order given,
// failing on the first unknown name or construction error. The caller
// (gateway's lifecycle-driven config load) is responsible for giving
// configs a deterministic order — typically the order plugins appear in
// the YAML document.
func Instantiate(ctx context.Context, configs []Config) ([]Plugin, error) {
	out := make([]Plugin, 0, len(configs))
	for _, c := range configs {
		factory, ok := Lookup(c.Name)
		if !ok {
			return nil, fmt.Errorf("plugin: no factory registered for %q", c.Name)
		}
		p, err := factory(ctx, c.Raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %q: %w", c.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Chain holds the three stage services after every configured plugin has
// wrapped them, innermost (the bare, unwrapped stage) first in
// construction order and outermost being whichever plugin configured last
// runs first on a request — matching tower::ServiceBuilder's "last layer
// added runs first" composition that the teacher-language router relies on.
type Chain struct {
	Supergraph pipeline.SupergraphService
	Execution  pipeline.ExecutionService
	Subgraph   func(name string, base pipeline.SubgraphService) pipeline.SubgraphService
}

// BuildChain wraps base's three stages with every plugin in plugins, last
// plugin in the slice ending up outermost.
func BuildChain(base Chain, plugins []Plugin) Chain {
	out := base
	for _, p := range plugins {
		out.Supergraph = p.SupergraphService(out.Supergraph)
		out.Execution = p.ExecutionService(out.Execution)
		prevSubgraph := out.Subgraph
		out.Subgraph = func(name string, svc pipeline.SubgraphService) pipeline.SubgraphService {
			return p.SubgraphService(name, prevSubgraph(name, svc))
		}
	}
	return out
}
