package plan

// ContainsDefer reports whether node or any of its descendants is a Defer
// node. The execution-stage service uses this to decide whether a request
// needs a deferred-chunk channel kept open at all — most queries don't,
// and opening one unconditionally would leave an idle goroutine and
// channel per request for no reason.
func ContainsDefer(node Node) bool {
	switch node.Kind {
	case KindDefer:
		return true
	case KindSequence:
		for _, n := range node.Sequence.Nodes {
			if ContainsDefer(n) {
				return true
			}
		}
	case KindParallel:
		for _, n := range node.Parallel.Nodes {
			if ContainsDefer(n) {
				return true
			}
		}
	case KindFlatten:
		return ContainsDefer(node.Flatten.Node)
	case KindCondition:
		if !node.Condition.IfClause.IsZero() && ContainsDefer(node.Condition.IfClause) {
			return true
		}
		if !node.Condition.ElseClause.IsZero() && ContainsDefer(node.Condition.ElseClause) {
			return true
		}
	}
	return false
}
