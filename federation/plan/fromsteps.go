package plan

import (
	"strconv"
	"strings"

	"github.com/n9te9/federation-gateway/federation/executor"
	"github.com/n9te9/federation-gateway/federation/graph"
	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/planner"
)

// FromSteps adapts a teacher-style flat step DAG (federation/planner.PlanV2)
// into the tree of tagged-variant nodes the executor evaluates. Query
// parsing, validation, and plan generation are out of spec.md's scope
// (§1 Non-goals) — this adapter is the seam: it lets the teacher's
// dependency-based planner keep doing that work, and re-expresses its
// output in the shape THE CORE actually consumes.
//
// Steps with no dependencies form layer 0 and execute as a Parallel group
// (planner guarantees disjoint writes among independent root steps);
// successive layers — steps whose DependsOn are all satisfied by earlier
// layers — execute as subsequent elements of a Sequence, since each layer
// may read data the previous layer wrote. An entity step (StepTypeEntity)
// is wrapped in a Flatten over its InsertionPath so the executor applies it
// relative to the array (or object) the entity lives under.
func FromSteps(p *planner.PlanV2, superGraph *graph.SuperGraphV2) Node {
	qb := executor.NewQueryBuilderV2(superGraph)
	layers := layerSteps(p)

	seqNodes := make([]Node, 0, len(layers))
	for _, layer := range layers {
		layerNodes := make([]Node, 0, len(layer))
		for _, step := range layer {
			layerNodes = append(layerNodes, nodeForStep(step, superGraph, qb))
		}
		if len(layerNodes) == 1 {
			seqNodes = append(seqNodes, layerNodes[0])
		} else {
			seqNodes = append(seqNodes, Parallel(layerNodes...))
		}
	}

	if len(seqNodes) == 1 {
		return seqNodes[0]
	}
	return Sequence(seqNodes...)
}

// layerSteps groups steps into dependency layers using the same in-degree
// sweep the teacher's validateDAG uses to detect cycles
// (federation/executor/executor_v2.go), reused here to order execution
// instead of merely validating it.
func layerSteps(p *planner.PlanV2) [][]*planner.StepV2 {
	resolved := make(map[int]bool, len(p.Steps))
	var layers [][]*planner.StepV2

	remaining := len(p.Steps)
	for remaining > 0 {
		var layer []*planner.StepV2
		for _, step := range p.Steps {
			if resolved[step.ID] {
				continue
			}
			ready := true
			for _, dep := range step.DependsOn {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, step)
			}
		}
		if len(layer) == 0 {
			// Cycle or unresolved dependency; stop rather than loop forever.
			// The caller is expected to have validated the plan already.
			break
		}
		for _, step := range layer {
			resolved[step.ID] = true
		}
		remaining -= len(layer)
		layers = append(layers, layer)
	}
	return layers
}

func nodeForStep(step *planner.StepV2, superGraph *graph.SuperGraphV2, qb *executor.QueryBuilderV2) Node {
	fetch := fetchNodeForStep(step, superGraph, qb)

	if step.StepType == planner.StepTypeQuery || len(step.InsertionPath) == 0 {
		return Fetch(fetch)
	}

	flattenPath := pathFromInsertionPath(step.InsertionPath)
	return Flatten(flattenPath, Fetch(fetch))
}

func fetchNodeForStep(step *planner.StepV2, superGraph *graph.SuperGraphV2, qb *executor.QueryBuilderV2) FetchNode {
	fn := FetchNode{
		ID:             strconv.Itoa(step.ID),
		VariableUsages: qb.CollectVariables(step),
	}
	if step.SubGraph != nil {
		fn.ServiceName = step.SubGraph.Name
	}

	if step.StepType == planner.StepTypeQuery {
		text, _ := qb.BuildRootTemplate(step, "query")
		fn.Operation = text
		return fn
	}

	fn.Operation = qb.BuildEntityTemplate(step)
	fn.Requires = requiresForEntity(step, superGraph)
	return fn
}

// requiresForEntity names the @key fields a representation must carry,
// grounded in federation/graph.Entity.Keys — the same field set the
// teacher's extractRepresentations/buildRepresentation reads at request time
// (federation/executor/executor_v2.go).
func requiresForEntity(step *planner.StepV2, superGraph *graph.SuperGraphV2) []RequiresField {
	owner := superGraph.GetEntityOwnerSubGraph(step.ParentType)
	if owner == nil {
		return nil
	}
	entity, ok := owner.GetEntity(step.ParentType)
	if !ok || len(entity.Keys) == 0 {
		return nil
	}
	fields := strings.Fields(entity.Keys[0].FieldSet)
	out := make([]RequiresField, 0, len(fields))
	for _, f := range fields {
		out = append(out, RequiresField{Name: f, Path: jsonvalue.NewPath(jsonvalue.KeySegment(f))})
	}
	return out
}

// pathFromInsertionPath converts the teacher's []string InsertionPath (which
// includes a leading root type name like "Query") into the jsonvalue.Path a
// Flatten node walks. A Flatten segment follows every field segment: the
// teacher's navigatePathWithArrays (federation/executor/executor_v2.go)
// discovers at runtime, field by field, whether a path component lands on an
// object or a slice and recurses through slices transparently — Resolve's
// Flatten segment reproduces that by fanning out over a slice and falling
// back to a single pass-through location otherwise, so the static path built
// here does not need schema knowledge of which fields are list-typed.
func pathFromInsertionPath(insertionPath []string) jsonvalue.Path {
	segs := make([]jsonvalue.Segment, 0, len(insertionPath)*2)
	for i, p := range insertionPath {
		if i == 0 && (p == "Query" || p == "Mutation" || p == "Subscription") {
			continue
		}
		segs = append(segs, jsonvalue.KeySegment(p), jsonvalue.FlattenSegment())
	}
	return jsonvalue.NewPath(segs...)
}
