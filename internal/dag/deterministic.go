package dag

import (
	"fmt"

	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// DeterministicNode caches the output of a pure function of its parents.
// The cache is recomputed lazily on the first read after a touch.
type DeterministicNode struct {
	nodeBase
	fn    Function
	value value.Holder
	dirty bool
}

// NewDeterministicNode wires the function's members as parents. It fails
// with ErrInvalidGraph, before any edge is added, if a member is unbound or
// would close a cycle.
func NewDeterministicNode(name string, fn Function) (*DeterministicNode, error) {
	n := &DeterministicNode{nodeBase: newBase(name), fn: fn, dirty: true}
	members := fn.Members()
	if err := checkMembers(n, members); err != nil {
		return nil, err
	}
	wire(n, members)
	return n, nil
}

func (n *DeterministicNode) Kind() Kind { return KindDeterministic }

// Function returns the owned function.
func (n *DeterministicNode) Function() Function { return n.fn }

// IsDirty reports whether the cached value is stale.
func (n *DeterministicNode) IsDirty() bool { return n.dirty }

// Value returns the cached output, recomputing it first when dirty.
func (n *DeterministicNode) Value() value.Value {
	if n.dirty {
		v := n.fn.Execute()
		if v == nil {
			panic(fmt.Sprintf("dag: function of deterministic node %q returned nil", n.name))
		}
		n.value.Release()
		n.value = value.NewHolder(v)
		n.dirty = false
	}
	return n.value.Get()
}

// SetFunction replaces the function and rewires the parents. The node is
// left untouched on error.
func (n *DeterministicNode) SetFunction(fn Function) error {
	members := fn.Members()
	if err := checkMembers(n, members); err != nil {
		return err
	}
	unwire(n)
	n.fn = fn
	wire(n, members)
	n.Touch()
	return nil
}

// Touch marks the cache stale and propagates to the children. No snapshot is
// taken: after a rollback the output is recomputed from restored parents.
func (n *DeterministicNode) Touch() {
	n.touched = true
	n.dirty = true
	n.touchChildren()
}

func (n *DeterministicNode) touchAffected() {
	if n.touched && n.dirty {
		return
	}
	n.Touch()
}

// KeepMe commits the current output.
func (n *DeterministicNode) KeepMe() {
	n.touched = false
}

// RestoreMe marks the cache stale so the next read recomputes it from the
// restored parents.
func (n *DeterministicNode) RestoreMe() {
	if n.touched {
		n.dirty = true
	}
	n.touched = false
}

// GetAffected passes the request on to the children: a deterministic node
// has no probability of its own.
func (n *DeterministicNode) GetAffected(affected AffectedSet) {
	for _, c := range n.children {
		c.GetAffected(affected)
	}
}

// CloneDAG returns the clone of n in clones, creating it (and the clones of
// everything reachable from n) if needed.
func (n *DeterministicNode) CloneDAG(clones *CloneMap) Node {
	if c, ok := clones.Lookup(n); ok {
		return c
	}
	cp := &DeterministicNode{
		nodeBase: newBase(n.name),
		fn:       n.fn.Clone(),
		value:    n.value.Share(),
		dirty:    n.dirty,
	}
	cp.touched = n.touched
	clones.register(n, cp)

	for _, m := range n.fn.Members() {
		pc := m.Node.CloneDAG(clones)
		if err := cp.fn.SetMember(m.Name, pc); err != nil {
			panic(fmt.Sprintf("dag: rebinding %q of %q: %v", m.Name, n.name, err))
		}
		cp.AddParentNode(pc)
		pc.AddChildNode(cp)
	}

	n.cloneChildren(clones)
	return cp
}

// Destroy detaches n from its parents and releases the cached value.
func (n *DeterministicNode) Destroy() {
	unwire(n)
	n.value.Release()
	n.fn = nil
}

func (n *DeterministicNode) String() string {
	return fmt.Sprintf("%s := %s", n.name, n.Value())
}
