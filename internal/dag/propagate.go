package dag

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Affected returns the stochastic nodes whose probability must be
// re-evaluated after n changes value: GetAffected over every child of n.
func Affected(n Node) AffectedSet {
	affected := mapset.NewThreadUnsafeSet[*StochasticNode]()
	for _, c := range n.Children() {
		c.GetAffected(affected)
	}
	return affected
}

// Keep commits n and every touched node below it.
func Keep(n Node) {
	walkTouched(n, Node.KeepMe)
}

// Restore rolls back n and every touched node below it.
func Restore(n Node) {
	walkTouched(n, Node.RestoreMe)
}

// walkTouched applies fn depth-first from n, descending only through nodes
// that were touched: an untouched node has no touched descendants of its own.
func walkTouched(n Node, fn func(Node)) {
	seen := make(map[Node]struct{})
	var visit func(cur Node)
	visit = func(cur Node) {
		if _, ok := seen[cur]; ok {
			return
		}
		seen[cur] = struct{}{}
		wasTouched := cur.IsTouched()
		fn(cur)
		if !wasTouched {
			return
		}
		for _, c := range cur.Children() {
			visit(c)
		}
	}
	visit(n)
}
