package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Services resolves a subgraph name to the (possibly plugin-wrapped)
// SubgraphService that should handle it, and is what federation/engine's
// Services interface is satisfied by in production.
type Services struct {
	byName map[string]SubgraphService
}

// NewServices builds a Services lookup from a name→service map. Callers
// typically build byName once per schema reload by wrapping each
// federation/subgraph.HTTPService with a plugin chain's Subgraph func.
func NewServices(byName map[string]SubgraphService) Services {
	cp := make(map[string]SubgraphService, len(byName))
	for k, v := range byName {
		cp[k] = v
	}
	return Services{byName: cp}
}

// Service implements federation/engine.Services.
func (s Services) Service(name string) (SubgraphService, bool) {
	svc, ok := s.byName[name]
	return svc, ok
}

// boundedSubgraph caps in-flight calls to a wrapped SubgraphService,
// independent of whatever concurrency control (or lack of it) the
// transport underneath applies. Plugins that want a global, rather than
// per-endpoint, concurrency ceiling wrap with this instead of relying on
// federation/subgraph.HTTPService's own per-endpoint semaphore.
type boundedSubgraph struct {
	next SubgraphService
	sem  *semaphore.Weighted
}

// WithConcurrencyLimit wraps next so at most n calls run at once,
// blocking further callers until a slot frees — the pipeline-level
// analogue of tower::limit::ConcurrencyLimitLayer.
func WithConcurrencyLimit(next SubgraphService, n int64) SubgraphService {
	if n <= 0 {
		return next
	}
	return &boundedSubgraph{next: next, sem: semaphore.NewWeighted(n)}
}

func (b *boundedSubgraph) Call(ctx context.Context, req SubgraphRequest) (SubgraphResponse, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return SubgraphResponse{}, err
	}
	defer b.sem.Release(1)
	return b.next.Call(ctx, req)
}
