package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/n9te9/federation-gateway/federation/graph"
	"github.com/n9te9/federation-gateway/federation/lifecycle"
	"github.com/n9te9/federation-gateway/federation/plan"
	"github.com/n9te9/federation-gateway/federation/planner"
	"github.com/n9te9/federation-gateway/federation/pipeline"
	"github.com/n9te9/federation-gateway/federation/plugin"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"github.com/n9te9/federation-gateway/federation/subgraph"
	"github.com/n9te9/graphql-parser/ast"
)

// engine bundles everything one schema/config generation needs to plan and
// execute requests: the composed supergraph, its planner, and the service
// pipeline after every configured plugin has wrapped it. It plays the role
// the teacher's executionEngine/schemaStore pair used to play by hand;
// lifecycle.StateMachine now owns the atomic hot-swap, so engine itself
// only needs to be immutable and disposable.
type engine struct {
	superGraph *graph.SuperGraphV2
	planner    *planner.PlannerV2
	chain      plugin.Chain
}

var _ lifecycle.Factory = (*engine)(nil)

func (e *engine) Close() error { return nil }

// handle plans and executes one GraphQL request against e.
func (e *engine) handle(ctx context.Context, doc *ast.Document, variables map[string]interface{}, rc *reqcontext.Context) (pipeline.Response, error) {
	p, err := e.planner.Plan(doc, variables)
	if err != nil {
		return pipeline.Response{}, err
	}

	root := plan.FromSteps(p, e.superGraph)
	return e.chain.Supergraph.Call(ctx, pipeline.SupergraphRequest{
		Plan:      root,
		Variables: variables,
		Context:   rc,
	})
}

// BuildEngine is a lifecycle.Builder: config is the gateway's YAML settings
// document (GatewayOption minus schema text) and schema is a JSON-encoded
// map[string]string from subgraph name to SDL, produced by
// schemaBundleSource. Every call composes a fresh SuperGraphV2, builds one
// subgraph.HTTPService per declared service, and wraps the
// supergraph/execution/subgraph stages with every plugin the config names,
// in the order it names them.
func BuildEngine(ctx context.Context, config []byte, schema string, httpClient *http.Client) (lifecycle.Factory, error) {
	var cfg GatewayOption
	if err := yaml.Unmarshal(config, &cfg); err != nil {
		return nil, fmt.Errorf("gateway: decode config: %w", err)
	}

	var sdls map[string]string
	if err := json.Unmarshal([]byte(schema), &sdls); err != nil {
		return nil, fmt.Errorf("gateway: decode schema bundle: %w", err)
	}

	serviceByName := make(map[string]GatewayService, len(cfg.Services))
	for _, s := range cfg.Services {
		serviceByName[s.Name] = s
	}

	subGraphs := make([]*graph.SubGraphV2, 0, len(sdls))
	rawServices := make(map[string]pipeline.SubgraphService, len(sdls))
	for name, sdl := range sdls {
		svcCfg := serviceByName[name]

		sg, err := graph.NewSubGraphV2(name, []byte(sdl), svcCfg.Host)
		if err != nil {
			return nil, fmt.Errorf("gateway: subgraph %q: %w", name, err)
		}
		subGraphs = append(subGraphs, sg)

		timeout := 5 * time.Second
		if svcCfg.Timeout != "" {
			if d, err := time.ParseDuration(svcCfg.Timeout); err == nil {
				timeout = d
			}
		}
		rawServices[name] = subgraph.NewHTTPService(subgraph.Endpoint{
			Name:           name,
			URL:            svcCfg.Host,
			Timeout:        timeout,
			MaxConcurrency: svcCfg.MaxConcurrency,
		}, httpClient)
	}

	superGraph, err := graph.NewSuperGraphV2(subGraphs)
	if err != nil {
		return nil, fmt.Errorf("gateway: composition failed: %w", err)
	}

	plugins, err := plugin.Instantiate(ctx, pluginConfigs(cfg))
	if err != nil {
		return nil, fmt.Errorf("gateway: plugins: %w", err)
	}

	// Subgraph wrapping has to happen before the execution stage is built,
	// since the execution stage is handed the already-wrapped service
	// lookup; Supergraph/Execution wrapping happens afterward in a second
	// BuildChain call. Both calls see the same plugin list and order, so a
	// plugin's SubgraphService hook runs exactly once per call regardless
	// of which Chain value is kept.
	subgraphChain := plugin.BuildChain(plugin.Chain{
		Subgraph: identitySubgraph,
	}, plugins)

	wrapped := make(map[string]pipeline.SubgraphService, len(rawServices))
	for name, svc := range rawServices {
		wrapped[name] = subgraphChain.Subgraph(name, svc)
	}

	services := pipeline.NewServices(wrapped)
	baseExecution := pipeline.NewExecutionService(services)
	baseSupergraph := pipeline.NewSupergraphService(baseExecution)

	chain := plugin.BuildChain(plugin.Chain{
		Supergraph: baseSupergraph,
		Execution:  baseExecution,
		Subgraph:   identitySubgraph,
	}, plugins)

	return &engine{
		superGraph: superGraph,
		planner:    planner.NewPlannerV2(superGraph),
		chain:      chain,
	}, nil
}

func identitySubgraph(_ string, svc pipeline.SubgraphService) pipeline.SubgraphService { return svc }

func pluginConfigs(cfg GatewayOption) []plugin.Config {
	out := make([]plugin.Config, 0, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		raw, err := json.Marshal(p.Config)
		if err != nil {
			continue
		}
		out = append(out, plugin.Config{Name: p.Name, Raw: raw})
	}
	return out
}
