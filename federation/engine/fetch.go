package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/n9te9/federation-gateway/federation/executor"
	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/plan"
	"github.com/n9te9/federation-gateway/federation/subgraph"
)

// executeFetch resolves one FetchNode. currentDir is walked against a
// working copy of parentValue to find every location the fetch writes to:
// for a root-field step that is a single location (commonly the document
// root); for an entity step, one location per array element the plan's
// Flatten wrapper fanned out. A location's existing object (already
// carrying __typename and its @key fields from the step that produced it)
// supplies the entity representation; the subgraph's reply is deep-merged
// back into that same location, which is how the returned value ends up
// aliasing shared structure with parentValue and a redundant-but-harmless
// merge at the call site still produces the right tree (federation's
// _entities convention guarantees the reply array lines up index-for-index
// with the representations sent).
func executeFetch(ctx context.Context, n *plan.FetchNode, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	ctx, span := tracer.Start(ctx, "fetch", trace.WithAttributes(
		attribute.String("subgraph.name", n.ServiceName),
		attribute.String("fetch.id", n.ID),
	))
	defer span.End()

	value := parentValue
	locs := jsonvalue.Resolve(&value, currentDir)
	if len(locs) == 0 {
		publishIfDeferred(params, n.ID, value, nil)
		return value, "", nil
	}

	svc, ok := params.Services.Service(n.ServiceName)
	if !ok {
		err := gqlerror.Error{
			Message: "unknown subgraph: " + n.ServiceName,
			Path:    currentDir.GraphQLPath(),
			Extensions: map[string]interface{}{
				"code":    "SUBGRAPH_NOT_FOUND",
				"service": n.ServiceName,
			},
		}
		publishIfDeferred(params, n.ID, value, []gqlerror.Error{err})
		return value, "", []gqlerror.Error{err}
	}

	var errs []gqlerror.Error
	if len(n.Requires) > 0 {
		errs = executeEntityFetch(ctx, n, params, locs, svc)
	} else {
		errs = executeRootFetch(ctx, n, params, locs, svc)
	}

	applyRewrites(n, locs)
	publishIfDeferred(params, n.ID, value, errs)
	return value, "", errs
}

func executeRootFetch(ctx context.Context, n *plan.FetchNode, params *Parameters, locs []jsonvalue.Location, svc subgraph.Service) []gqlerror.Error {
	vars := make(map[string]interface{}, len(n.VariableUsages))
	for _, name := range n.VariableUsages {
		if v, ok := params.Variables[name]; ok {
			vars[name] = v
		}
	}

	resp, err := svc.Call(ctx, subgraph.Request{
		SubgraphName: n.ServiceName,
		Operation:    n.Operation,
		Variables:    vars,
		Headers:      executor.GetRequestHeaderFromContext(ctx),
		Context:      params.Context,
	})
	if err != nil {
		return []gqlerror.Error{toFetchError(err, n.ServiceName, locs[0].Path)}
	}

	for _, loc := range locs {
		merged, mergeErr := jsonvalue.DeepMerge(loc.Get(), resp.Data)
		if mergeErr != nil {
			continue
		}
		loc.Set(merged)
	}
	return rebaseErrors(resp.Errors, locs[0].Path)
}

func executeEntityFetch(ctx context.Context, n *plan.FetchNode, params *Parameters, locs []jsonvalue.Location, svc subgraph.Service) []gqlerror.Error {
	reps := make([]map[string]interface{}, 0, len(locs))
	repLocs := make([]jsonvalue.Location, 0, len(locs))

	for _, loc := range locs {
		obj, ok := loc.Get().(*jsonvalue.Object)
		if !ok {
			// null is a terminal no-write location: there is nothing to key a
			// representation from, so this element is skipped rather than errored.
			continue
		}
		rep := map[string]interface{}{}
		if tn, ok := obj.Get("__typename"); ok {
			rep["__typename"] = tn
		}
		for _, field := range n.Requires {
			if v, ok := obj.Get(field.Name); ok {
				rep[field.Name] = v
			}
		}
		reps = append(reps, rep)
		repLocs = append(repLocs, loc)
	}

	if len(reps) == 0 {
		return nil
	}

	resp, err := svc.Call(ctx, subgraph.Request{
		SubgraphName: n.ServiceName,
		Operation:    n.Operation,
		Variables:    map[string]interface{}{"representations": reps},
		Headers:      executor.GetRequestHeaderFromContext(ctx),
		Context:      params.Context,
	})
	if err != nil {
		return []gqlerror.Error{toFetchError(err, n.ServiceName, repLocs[0].Path)}
	}

	entities, _ := resp.Data.([]interface{})
	var errs []gqlerror.Error
	for i, loc := range repLocs {
		if i >= len(entities) {
			break
		}
		merged, mergeErr := jsonvalue.DeepMerge(loc.Get(), entities[i])
		if mergeErr != nil {
			continue
		}
		loc.Set(merged)
	}
	// Entity fetches return one errors array for the whole _entities call;
	// rebase every error against the fetch's own current_dir since the
	// subgraph has no visibility into which representation it came from.
	base := jsonvalue.Empty()
	if len(repLocs) > 0 {
		base = repLocs[0].Path
	}
	errs = append(errs, rebaseErrors(resp.Errors, base)...)
	return errs
}

func toFetchError(err error, serviceName string, path jsonvalue.Path) gqlerror.Error {
	var fe *subgraph.FetchError
	if fetchErr, ok := err.(*subgraph.FetchError); ok {
		fe = fetchErr
	} else {
		fe = &subgraph.FetchError{SubgraphName: serviceName, Op: "connect", Err: err}
	}
	return fe.ToGraphQLError(path)
}

func rebaseErrors(errs []gqlerror.Error, base jsonvalue.Path) []gqlerror.Error {
	if len(errs) == 0 {
		return nil
	}
	basePath := base.GraphQLPath()
	out := make([]gqlerror.Error, len(errs))
	for i, e := range errs {
		rebased := append(append([]interface{}{}, basePath...), e.Path...)
		e.Path = rebased
		out[i] = e
	}
	return out
}

// applyRewrites relocates fields the teacher's output_rewrites describe
// (renaming or moving a field before merge) on each location the fetch
// just wrote to. A from/to pair that does not resolve to an existing
// source value is a no-op: rewrites only ever move data that is present.
func applyRewrites(n *plan.FetchNode, locs []jsonvalue.Location) {
	if len(n.OutputRewrites) == 0 {
		return
	}
	for _, loc := range locs {
		for _, rw := range n.OutputRewrites {
			fromLocs := jsonvalue.ResolveFrom(loc.Get, loc.Set, rw.From)
			if len(fromLocs) == 0 {
				continue
			}
			v := fromLocs[0].Get()
			toLocs := jsonvalue.ResolveFrom(loc.Get, loc.Set, rw.To)
			for _, tl := range toLocs {
				tl.Set(v)
			}
		}
	}
}

func publishIfDeferred(params *Parameters, fetchID string, value interface{}, errs []gqlerror.Error) {
	if params.deferredFetches == nil || fetchID == "" {
		return
	}
	if b, ok := params.deferredFetches[fetchID]; ok {
		b.Publish(value, errs)
	}
}
