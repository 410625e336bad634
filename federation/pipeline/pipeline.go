// Package pipeline defines the layered request pipeline query execution
// flows through — supergraph, execution, subgraph — matching the three
// stages original_source/apollo-router/src/plugin/mod.rs lists as the
// points a Plugin can hook into ("router / query planning / execution /
// subgraph"; query parsing and planning are out of scope here, so this
// module starts one stage later, at the already-built plan). Each stage
// is a small Call-only interface so a plugin chain can wrap it the way
// tower::ServiceBuilder layers a tower::Service, without pulling in a
// generic middleware framework the rest of the stack doesn't need.
package pipeline

import (
	"context"

	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/plan"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"github.com/n9te9/federation-gateway/federation/subgraph"
)

// Response is the shape every stage hands back: a primary chunk plus, for
// a query with @defer fields, a channel of follow-up chunks. Deferred is
// nil for a request with nothing to defer.
type Response struct {
	Primary  gqlerror.Response
	Deferred <-chan gqlerror.Response
}

// SupergraphRequest is what reaches the outermost stage: an
// already-planned operation (planning is an external collaborator's job,
// see federation/plan) plus the variables and correlation context the
// plan's Fetch nodes and Condition nodes read.
type SupergraphRequest struct {
	Plan      plan.Node
	Variables map[string]interface{}
	Context   *reqcontext.Context
}

// SupergraphService is the outermost pipeline stage: the one HTTP-facing
// plugins (auth, rate limiting, request logging) wrap.
type SupergraphService interface {
	Call(ctx context.Context, req SupergraphRequest) (Response, error)
}

// ExecutionRequest is identical in shape to SupergraphRequest today; it is
// kept as a distinct type because a plugin at the execution stage
// operates after supergraph-level concerns (auth, rate limiting) have
// already run and should not need to know about them.
type ExecutionRequest struct {
	Plan      plan.Node
	Variables map[string]interface{}
	Context   *reqcontext.Context
}

// ExecutionService is the stage that actually invokes the query plan
// executor (federation/engine).
type ExecutionService interface {
	Call(ctx context.Context, req ExecutionRequest) (Response, error)
}

// SubgraphService is the innermost stage: one call to one named subgraph.
// It is the same contract federation/subgraph.Service already defines;
// aliased here so pipeline and plugin code depend on the pipeline
// package's vocabulary rather than reaching into federation/subgraph
// directly.
type SubgraphService = subgraph.Service

// SubgraphRequest and SubgraphResponse alias their federation/subgraph
// counterparts for the same reason.
type SubgraphRequest = subgraph.Request
type SubgraphResponse = subgraph.Response
