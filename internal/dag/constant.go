package dag

import (
	"fmt"

	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// ConstantNode holds a fixed value. It never has parents and is never touched.
type ConstantNode struct {
	nodeBase
	value value.Holder
}

// NewConstantNode takes ownership of v. A nil value is a programming error.
func NewConstantNode(name string, v value.Value) *ConstantNode {
	if v == nil {
		panic(fmt.Sprintf("dag: constant node %q with nil value", name))
	}
	return &ConstantNode{nodeBase: newBase(name), value: value.NewHolder(v)}
}

func (n *ConstantNode) Kind() Kind         { return KindConstant }
func (n *ConstantNode) Value() value.Value { return n.value.Get() }

// AddParentNode is a no-op: constants have no parents.
func (n *ConstantNode) AddParentNode(Node) {}

// Touch, KeepMe and RestoreMe are no-ops: the value never changes.
func (n *ConstantNode) Touch()         {}
func (n *ConstantNode) KeepMe()        {}
func (n *ConstantNode) RestoreMe()     {}
func (n *ConstantNode) touchAffected() {}

// GetAffected adds nothing; a constant never changes.
func (n *ConstantNode) GetAffected(AffectedSet) {}

// CloneDAG returns the clone of n in clones, creating it (and the clones of
// everything reachable from n) if needed.
func (n *ConstantNode) CloneDAG(clones *CloneMap) Node {
	if c, ok := clones.Lookup(n); ok {
		return c
	}
	cp := &ConstantNode{nodeBase: newBase(n.name), value: n.value.Share()}
	clones.register(n, cp)
	n.cloneChildren(clones)
	return cp
}

// Destroy releases the value. Constants have no parents to detach from.
func (n *ConstantNode) Destroy() {
	n.value.Release()
}

func (n *ConstantNode) String() string {
	return fmt.Sprintf("%s = %s", n.name, n.value.Get())
}
