package pipeline

import "context"

// defaultSupergraph forwards straight to an ExecutionService with no
// changes; it exists so BuildChain always has something concrete to start
// plugin wrapping from, the same role the teacher-language router's
// default (pass-through) supergraph_service plays before any plugin has
// touched it.
type defaultSupergraph struct {
	execution ExecutionService
}

// NewSupergraphService builds the base SupergraphService sitting directly
// on top of execution.
func NewSupergraphService(execution ExecutionService) SupergraphService {
	return &defaultSupergraph{execution: execution}
}

func (s *defaultSupergraph) Call(ctx context.Context, req SupergraphRequest) (Response, error) {
	return s.execution.Call(ctx, ExecutionRequest{
		Plan:      req.Plan,
		Variables: req.Variables,
		Context:   req.Context,
	})
}
