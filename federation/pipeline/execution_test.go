package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/pipeline"
	"github.com/n9te9/federation-gateway/federation/plan"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"github.com/n9te9/federation-gateway/federation/subgraph"
)

type stubService struct {
	resp subgraph.Response
	err  error
}

func (s *stubService) Call(_ context.Context, _ subgraph.Request) (subgraph.Response, error) {
	return s.resp, s.err
}

func TestExecutionService_NonDeferredPlanHasNilDeferredChannel(t *testing.T) {
	data := jsonvalue.NewObject()
	data.Set("me", "alice")
	services := pipeline.NewServices(map[string]pipeline.SubgraphService{
		"users": &stubService{resp: subgraph.Response{Data: data}},
	})

	svc := pipeline.NewExecutionService(services)
	resp, err := svc.Call(context.Background(), pipeline.ExecutionRequest{
		Plan:    plan.Fetch(plan.FetchNode{ServiceName: "users"}),
		Context: reqcontext.New(),
	})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if resp.Deferred != nil {
		t.Errorf("Call() Deferred = %v, want nil for a plan with no @defer", resp.Deferred)
	}
	obj, ok := resp.Primary.Data.(*jsonvalue.Object)
	if !ok {
		t.Fatalf("Call() Primary.Data = %T, want *jsonvalue.Object", resp.Primary.Data)
	}
	if v, _ := obj.Get("me"); v != "alice" {
		t.Errorf("Call() Primary.Data[me] = %v, want alice", v)
	}
}

func TestExecutionService_DeferredPlanStreamsAndCloses(t *testing.T) {
	services := pipeline.NewServices(map[string]pipeline.SubgraphService{})

	deferNode := plan.Defer(
		plan.Primary{Subselection: "{ me }"},
		plan.DeferredNode{Label: "slow"},
	)

	svc := pipeline.NewExecutionService(services)
	resp, err := svc.Call(context.Background(), pipeline.ExecutionRequest{
		Plan:    deferNode,
		Context: reqcontext.New(),
	})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if resp.Deferred == nil {
		t.Fatalf("Call() Deferred = nil, want a channel for a plan with @defer")
	}

	var chunk gqlerror.Response
	select {
	case chunk = <-resp.Deferred:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the deferred chunk")
	}
	if chunk.Label != "slow" {
		t.Errorf("deferred chunk Label = %q, want %q", chunk.Label, "slow")
	}

	select {
	case _, ok := <-resp.Deferred:
		if ok {
			t.Fatal("expected Deferred channel to be closed after its one chunk")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Deferred channel to close")
	}
}
