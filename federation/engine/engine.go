// Package engine evaluates a plan.Node tree against a set of subgraph
// services, producing the merged response value and the GraphQL errors
// gathered along the way. It is the recursive evaluator
// original_source/apollo-router/src/query_planner/execution.rs implements
// as PlanNode::execute_recursively; this package reproduces its node-by-node
// semantics (Sequence threads the accumulating value forward, Parallel
// fans out against the same parent, Flatten only changes current_dir,
// Fetch talks to one subgraph, Defer splits into primary/deferred
// branches) in Go, using goroutines and channels in place of async tasks
// and broadcast channels.
package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/plan"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"github.com/n9te9/federation-gateway/federation/subgraph"
)

var tracer = otel.Tracer("github.com/n9te9/federation-gateway/federation/engine")

// Services resolves a FetchNode.ServiceName to the transport that talks to
// that subgraph. The pipeline package supplies the production
// implementation, wrapping each subgraph.HTTPService with whatever plugin
// chain is configured for it.
type Services interface {
	Service(name string) (subgraph.Service, bool)
}

// Parameters holds the arguments that do not change as Execute recurses,
// mirroring the teacher-language's ExecutionParameters: the request
// context, the service lookup, the original request variables a root
// Fetch or a Condition node reads, and the sink deferred branches stream
// their chunks to. deferredFetches is reset at each Defer boundary so a
// fetch id only resolves broadcasters declared by the nearest enclosing
// Defer node.
type Parameters struct {
	Context         *reqcontext.Context
	Services        Services
	Variables       map[string]interface{}
	Sender          chan<- gqlerror.Response
	deferredFetches map[string]*Broadcaster
}

// NewParameters builds the top-level Parameters for one request.
func NewParameters(rc *reqcontext.Context, services Services, variables map[string]interface{}, sender chan<- gqlerror.Response) *Parameters {
	return &Parameters{Context: rc, Services: services, Variables: variables, Sender: sender}
}

func (p *Parameters) withDeferredFetches(m map[string]*Broadcaster) *Parameters {
	cp := *p
	cp.deferredFetches = m
	return &cp
}

// Run executes root from the document root and assembles the primary
// Response. Any @defer branches are streamed to params.Sender by Execute
// and are not part of the returned Response.
func Run(ctx context.Context, root plan.Node, params *Parameters) gqlerror.Response {
	value, subselection, errs := Execute(ctx, root, params, jsonvalue.Empty(), nil)
	return gqlerror.Response{
		Data:         value,
		Errors:       errs,
		Subselection: subselection,
	}
}

// Execute evaluates node against currentDir/parentValue and returns the
// value it produced (to be deep-merged by the caller — Flatten and Defer
// are the two variants that do not want an extra merge performed on their
// behalf and return their child's value directly), the subselection
// attached to the furthest @defer Primary encountered, and the GraphQL
// errors it collected.
func Execute(ctx context.Context, node plan.Node, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	switch node.Kind {
	case plan.KindSequence:
		return executeSequence(ctx, node.Sequence, params, currentDir, parentValue)
	case plan.KindParallel:
		return executeParallel(ctx, node.Parallel, params, currentDir, parentValue)
	case plan.KindFlatten:
		return executeFlatten(ctx, node.Flatten, params, currentDir, parentValue)
	case plan.KindFetch:
		return executeFetch(ctx, node.Fetch, params, currentDir, parentValue)
	case plan.KindDefer:
		return executeDefer(ctx, node.Defer, params, currentDir, parentValue)
	case plan.KindCondition:
		return executeCondition(ctx, node.Condition, params, currentDir, parentValue)
	default:
		return parentValue, "", nil
	}
}

func executeSequence(ctx context.Context, n *plan.SequenceNode, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	ctx, span := tracer.Start(ctx, "sequence")
	defer span.End()

	value := parentValue
	var errs []gqlerror.Error
	var subselection string
	for _, child := range n.Nodes {
		v, sub, e := Execute(ctx, child, params, currentDir, value)
		merged, mergeErr := jsonvalue.DeepMerge(value, v)
		if mergeErr != nil {
			errs = append(errs, gqlerror.Error{Message: mergeErr.Error()})
		} else {
			value = merged
		}
		errs = append(errs, e...)
		subselection = sub
	}
	return value, subselection, errs
}

func executeParallel(ctx context.Context, n *plan.ParallelNode, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	ctx, span := tracer.Start(ctx, "parallel")
	defer span.End()

	results := make([]interface{}, len(n.Nodes))
	errLists := make([][]gqlerror.Error, len(n.Nodes))

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range n.Nodes {
		i, child := i, child
		g.Go(func() error {
			v, _, e := Execute(gctx, child, params, currentDir, parentValue)
			results[i] = v
			errLists[i] = e
			return nil
		})
	}
	_ = g.Wait()

	var value interface{}
	var errs []gqlerror.Error
	for i := range results {
		merged, mergeErr := jsonvalue.DeepMerge(value, results[i])
		if mergeErr != nil {
			errs = append(errs, gqlerror.Error{Message: mergeErr.Error()})
		} else {
			value = merged
		}
		errs = append(errs, errLists[i]...)
	}
	return value, "", errs
}

func executeFlatten(ctx context.Context, n *plan.FlattenNode, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	nextDir := currentDir.Join(n.Path)
	ctx, span := tracer.Start(ctx, "flatten", trace.WithAttributes(attribute.String("path", nextDir.String())))
	defer span.End()

	return Execute(ctx, n.Node, params, nextDir, parentValue)
}

func executeCondition(ctx context.Context, n *plan.ConditionNode, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	v, ok := params.Variables[n.Condition]
	branchTrue := true
	if ok {
		if b, isBool := v.(bool); isBool {
			branchTrue = b
		}
	}

	if branchTrue {
		if n.IfClause.IsZero() {
			return nil, "", nil
		}
		ctx, span := tracer.Start(ctx, "condition_if")
		defer span.End()
		return Execute(ctx, n.IfClause, params, currentDir, parentValue)
	}

	if n.ElseClause.IsZero() {
		return nil, "", nil
	}
	ctx, span := tracer.Start(ctx, "condition_else")
	defer span.End()
	return Execute(ctx, n.ElseClause, params, currentDir, parentValue)
}

// requestWaitKey is the context key WithWaitGroup stores its WaitGroup
// under; executeDefer reads it back through waitGroupFrom so callers
// (gateway) can block until every deferred branch of a request has
// finished before closing the multipart stream.
type requestWaitKey struct{}

// WithWaitGroup attaches a *sync.WaitGroup that Defer nodes register their
// background branches on, so the caller can wait for full completion.
func WithWaitGroup(ctx context.Context, wg *sync.WaitGroup) context.Context {
	return context.WithValue(ctx, requestWaitKey{}, wg)
}

func waitGroupFrom(ctx context.Context) *sync.WaitGroup {
	wg, _ := ctx.Value(requestWaitKey{}).(*sync.WaitGroup)
	return wg
}
