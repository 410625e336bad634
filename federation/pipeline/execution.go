package pipeline

import (
	"context"
	"sync"

	"github.com/n9te9/federation-gateway/federation/engine"
	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/plan"
)

// defaultExecution is the innermost ExecutionService: it always runs, with
// no further stage beneath it, and is what BuildChain's plugin wrapping
// starts from.
type defaultExecution struct {
	services engine.Services
}

// NewExecutionService builds the base ExecutionService that drives
// federation/engine against the given subgraph lookup. Plugins wrap the
// value this returns; it is never called directly once at least one
// execution-stage plugin is configured.
func NewExecutionService(services engine.Services) ExecutionService {
	return &defaultExecution{services: services}
}

func (e *defaultExecution) Call(ctx context.Context, req ExecutionRequest) (Response, error) {
	if !plan.ContainsDefer(req.Plan) {
		params := engine.NewParameters(req.Context, e.services, req.Variables, nil)
		resp := engine.Run(ctx, req.Plan, params)
		return Response{Primary: resp}, nil
	}

	deferredCh := make(chan gqlerror.Response, 8)
	var wg sync.WaitGroup
	runCtx := engine.WithWaitGroup(ctx, &wg)
	params := engine.NewParameters(req.Context, e.services, req.Variables, deferredCh)

	resp := engine.Run(runCtx, req.Plan, params)

	go func() {
		wg.Wait()
		close(deferredCh)
	}()

	return Response{Primary: resp, Deferred: deferredCh}, nil
}
