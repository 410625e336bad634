package pipeline_test

import (
	"context"
	"testing"

	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/pipeline"
	"github.com/n9te9/federation-gateway/federation/plan"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"github.com/n9te9/federation-gateway/federation/subgraph"
)

func TestSupergraphService_ForwardsToExecution(t *testing.T) {
	data := jsonvalue.NewObject()
	data.Set("product", "widget")
	services := pipeline.NewServices(map[string]pipeline.SubgraphService{
		"products": &stubService{resp: subgraph.Response{Data: data}},
	})
	execution := pipeline.NewExecutionService(services)
	sg := pipeline.NewSupergraphService(execution)

	resp, err := sg.Call(context.Background(), pipeline.SupergraphRequest{
		Plan:      plan.Fetch(plan.FetchNode{ServiceName: "products"}),
		Variables: map[string]interface{}{"x": 1},
		Context:   reqcontext.New(),
	})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	obj, ok := resp.Primary.Data.(*jsonvalue.Object)
	if !ok {
		t.Fatalf("Call() Primary.Data = %T, want *jsonvalue.Object", resp.Primary.Data)
	}
	if v, _ := obj.Get("product"); v != "widget" {
		t.Errorf("Call() Primary.Data[product] = %v, want widget", v)
	}
}
