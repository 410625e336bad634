package engine

import (
	"context"
	"log/slog"

	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/plan"
)

// executeDefer evaluates a @defer boundary: Primary runs inline and its
// result is what executeDefer returns, exactly as
// original_source/apollo-router/src/query_planner/execution.rs's Defer arm
// returns the primary branch's (value, subselection, errors) unchanged.
// Each DeferredNode is launched in its own goroutine against a fresh set
// of per-fetch broadcasters scoped to this Defer node, and streams its own
// chunk to params.Sender once its dependencies (or, lacking any, the
// primary branch) resolve.
func executeDefer(ctx context.Context, n *plan.DeferNode, params *Parameters, currentDir jsonvalue.Path, parentValue interface{}) (interface{}, string, []gqlerror.Error) {
	ctx, span := tracer.Start(ctx, "primary")
	defer span.End()

	fetchBroadcasters := declareFetchBroadcasters(n)
	primaryBroadcaster := NewBroadcaster()
	primaryParams := params.withDeferredFetches(fetchBroadcasters)

	wg := waitGroupFrom(ctx)
	if wg != nil {
		wg.Add(len(n.Deferred))
	}
	for i, d := range n.Deferred {
		d := d
		isLast := i == len(n.Deferred)-1
		go func() {
			if wg != nil {
				defer wg.Done()
			}
			runDeferredNode(ctx, d, params, fetchBroadcasters, primaryBroadcaster, parentValue, isLast)
		}()
	}

	var value interface{}
	var subselection string
	var errs []gqlerror.Error
	if !n.Primary.Node.IsZero() {
		v, sub, e := Execute(ctx, n.Primary.Node, primaryParams, currentDir, parentValue)
		merged, mergeErr := jsonvalue.DeepMerge(parentValue, v)
		if mergeErr != nil {
			value = parentValue
		} else {
			value = merged
		}
		subselection = n.Primary.Subselection
		if sub != "" {
			subselection = sub
		}
		errs = e
	} else {
		value = parentValue
		subselection = n.Primary.Subselection
	}

	primaryBroadcaster.Publish(value, errs)
	return value, subselection, errs
}

// declareFetchBroadcasters creates one Broadcaster per distinct fetch id a
// deferred branch of n depends on, so a Fetch that runs as part of Primary
// (or a sibling deferred branch, in principle) always has somewhere to
// publish to before any dependent branch subscribes.
func declareFetchBroadcasters(n *plan.DeferNode) map[string]*Broadcaster {
	out := make(map[string]*Broadcaster)
	for _, d := range n.Deferred {
		for _, dep := range d.Depends {
			if _, ok := out[dep.ID]; !ok {
				out[dep.ID] = NewBroadcaster()
			}
		}
	}
	return out
}

func runDeferredNode(ctx context.Context, d plan.DeferredNode, params *Parameters, fetchBroadcasters map[string]*Broadcaster, primaryBroadcaster *Broadcaster, parentValue interface{}, isLast bool) {
	ctx, span := tracer.Start(ctx, "deferred")
	defer span.End()

	value := parentValue
	var errs []gqlerror.Error

	if len(d.Depends) == 0 {
		r := <-primaryBroadcaster.Subscribe()
		merged, mergeErr := jsonvalue.DeepMerge(value, r.Value)
		if mergeErr == nil {
			value = merged
		}
		errs = append(errs, r.Errors...)
	} else {
		for _, dep := range d.Depends {
			b, ok := fetchBroadcasters[dep.ID]
			if !ok {
				continue
			}
			r := <-b.Subscribe()
			merged, mergeErr := jsonvalue.DeepMerge(value, r.Value)
			if mergeErr == nil {
				value = merged
			}
			errs = append(errs, r.Errors...)
		}
	}

	subselection := d.Subselection

	if !d.Node.IsZero() {
		nestedParams := params.withDeferredFetches(map[string]*Broadcaster{})
		v, nodeSub, nodeErrs := Execute(ctx, d.Node, nestedParams, jsonvalue.Empty(), value)
		merged, mergeErr := jsonvalue.DeepMerge(value, v)
		if mergeErr == nil {
			value = merged
		}
		errs = append(errs, nodeErrs...)
		if subselection == "" {
			subselection = nodeSub
		}

		if len(d.Depends) != 0 {
			r := <-primaryBroadcaster.Subscribe()
			merged, mergeErr := jsonvalue.DeepMerge(value, r.Value)
			if mergeErr == nil {
				value = merged
			}
		}
	}

	path := d.Path
	send(params.Sender, gqlerror.Response{
		Data:         value,
		Errors:       errs,
		Path:         &path,
		Label:        d.Label,
		Subselection: subselection,
		HasNext:      gqlerror.BoolPtr(!isLast),
	})
}

func send(sender chan<- gqlerror.Response, resp gqlerror.Response) {
	if sender == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("engine: dropped deferred chunk, sender already closed", "recover", r)
		}
	}()
	sender <- resp
}
