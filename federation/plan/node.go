// Package plan defines the query plan node model the executor evaluates
// (spec.md §3 PlanNode, §4.3). Plan generation — turning a parsed GraphQL
// operation and a composed supergraph into a Node tree — is an external
// collaborator's job per spec.md §1 Non-goals; this package only defines
// the tree shape and the small pieces (variable/representation selection)
// the executor needs to interpret a Fetch leaf.
package plan

import "github.com/n9te9/federation-gateway/federation/jsonvalue"

// Kind discriminates the Node variant.
type Kind int

const (
	KindFetch Kind = iota
	KindSequence
	KindParallel
	KindFlatten
	KindDefer
	KindCondition
)

// FetchNode resolves one subgraph operation.
type FetchNode struct {
	ServiceName     string
	ID              string // correlates with DeferredNode.Depends[].ID
	VariableUsages  []string
	Operation       string
	Requires        []RequiresField // selection applied against parent_value to build representations
	OutputRewrites  []Rewrite
}

// RequiresField names a field (and, for entities, its dotted path within
// the representation) the fetch needs lifted from parent_value at
// current_dir before it can run — the planner's `@requires`/entity-key
// selection.
type RequiresField struct {
	Name string
	Path jsonvalue.Path
}

// Rewrite renames or relocates a field in a fetch's result before merge.
type Rewrite struct {
	From jsonvalue.Path
	To   jsonvalue.Path
}

// SequenceNode executes its children in order, threading the accumulating
// value forward as each child's parent_value (spec.md §4.3 Sequence).
type SequenceNode struct {
	Nodes []Node
}

// ParallelNode executes its children concurrently against the same
// parent_value; the planner guarantees children write disjoint paths, so
// merge order is irrelevant to the result (spec.md §4.3 Parallel, §8
// property 1).
type ParallelNode struct {
	Nodes []Node
}

// FlattenNode extends current_dir by Path before evaluating Node — the
// mechanism by which a nested plan is applied once per array element
// (spec.md §4.3 Flatten).
type FlattenNode struct {
	Path jsonvalue.Path
	Node Node
}

// Primary is the non-deferred branch of a Defer node.
type Primary struct {
	Path         jsonvalue.Path
	Subselection string
	Node         Node // nil is legal: an empty primary branch
}

// DependsOn names an upstream fetch whose value a DeferredNode gates on.
type DependsOn struct {
	ID string
}

// DeferredNode is one `@defer`red branch of a DeferNode.
type DeferredNode struct {
	Depends      []DependsOn
	Path         jsonvalue.Path
	Subselection string
	Label        string
	Node         Node // nil is legal: the branch just waits and re-emits gathered data
}

// DeferNode splits execution into an eagerly-evaluated Primary and zero or
// more DeferredNode branches streamed back after Primary resolves or after
// their Depends are satisfied, whichever is later (spec.md §4.3 Defer).
type DeferNode struct {
	Primary  Primary
	Deferred []DeferredNode
}

// ConditionNode chooses IfClause or ElseClause based on a boolean request
// variable (spec.md §4.3 Condition). Per the Open Question resolution in
// SPEC_FULL.md, if both clauses are absent for the chosen branch the node
// contributes nothing.
type ConditionNode struct {
	Condition string
	IfClause  Node // nil is legal
	ElseClause Node // nil is legal
}

// Node is a tagged-variant plan node. Exactly one of the Kind-matching
// fields is populated; the others are zero. A struct (rather than an
// interface) keeps the tree trivially copyable and comparable in tests,
// matching how the teacher's StepV2/PlanV2 types are plain structs.
type Node struct {
	Kind      Kind
	Fetch     *FetchNode
	Sequence  *SequenceNode
	Parallel  *ParallelNode
	Flatten   *FlattenNode
	Defer     *DeferNode
	Condition *ConditionNode
}

// Fetch builds a Fetch-kind Node.
func Fetch(f FetchNode) Node { return Node{Kind: KindFetch, Fetch: &f} }

// Sequence builds a Sequence-kind Node.
func Sequence(nodes ...Node) Node {
	return Node{Kind: KindSequence, Sequence: &SequenceNode{Nodes: nodes}}
}

// Parallel builds a Parallel-kind Node.
func Parallel(nodes ...Node) Node {
	return Node{Kind: KindParallel, Parallel: &ParallelNode{Nodes: nodes}}
}

// Flatten builds a Flatten-kind Node.
func Flatten(path jsonvalue.Path, node Node) Node {
	return Node{Kind: KindFlatten, Flatten: &FlattenNode{Path: path, Node: node}}
}

// Defer builds a Defer-kind Node.
func Defer(primary Primary, deferred ...DeferredNode) Node {
	return Node{Kind: KindDefer, Defer: &DeferNode{Primary: primary, Deferred: deferred}}
}

// Condition builds a Condition-kind Node. Either clause may be the zero
// Node (Kind defaults to KindFetch with a nil Fetch pointer, which Plan
// holders must treat as "absent" — see IsZero).
func Condition(condVar string, ifClause, elseClause *Node) Node {
	c := &ConditionNode{Condition: condVar}
	if ifClause != nil {
		c.IfClause = *ifClause
	} else {
		c.IfClause = Node{}
	}
	if elseClause != nil {
		c.ElseClause = *elseClause
	} else {
		c.ElseClause = Node{}
	}
	return Node{Kind: KindCondition, Condition: c}
}

// IsZero reports whether n is the absent/unset Node (used for optional
// clauses and optional Primary/DeferredNode inner nodes).
func (n Node) IsZero() bool {
	return n.Kind == KindFetch && n.Fetch == nil &&
		n.Sequence == nil && n.Parallel == nil && n.Flatten == nil &&
		n.Defer == nil && n.Condition == nil
}
