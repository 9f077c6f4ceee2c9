package dag

import (
	"fmt"
	"math/rand/v2"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// Kind discriminates the three kinds of DAG nodes.
type Kind string

const (
	KindConstant      Kind = "constant"
	KindDeterministic Kind = "deterministic"
	KindStochastic    Kind = "stochastic"
)

// AffectedSet collects the stochastic nodes whose probability depends on a change.
type AffectedSet = mapset.Set[*StochasticNode]

// Node is the common interface for all DAG nodes. The set of kinds is closed:
// only ConstantNode, DeterministicNode and StochasticNode implement it.
type Node interface {
	ID() uuid.UUID
	Name() string
	SetName(name string)
	Kind() Kind
	Value() value.Value

	Parents() []Node
	Children() []Node
	AddParentNode(p Node)
	RemoveParentNode(p Node)
	AddChildNode(c Node)
	RemoveChildNode(c Node)

	IsTouched() bool
	Touch()
	KeepMe()
	RestoreMe()
	GetAffected(affected AffectedSet)

	CloneDAG(clones *CloneMap) Node
	Destroy()

	// touchAffected is what a parent calls on its children when it changes.
	touchAffected()
}

// Member binds a named parameter slot of a distribution or function to a node.
type Member struct {
	Name string
	Node Node
}

// Distribution is the probability distribution owned by a stochastic node.
// Its members are the node's parents.
type Distribution interface {
	LnPdf(v value.Value) float64
	Rv(r *rand.Rand) value.Value
	Clone() Distribution
	Members() []Member
	SetMember(name string, n Node) error
	VariableType() value.Type
}

// MarginalDistribution is implemented by distributions whose variable can be
// integrated out (non-instantiated stochastic nodes).
type MarginalDistribution interface {
	Distribution
	LnMarginalPdf() float64
}

// Function is the pure function owned by a deterministic node. It reads the
// current values of its members.
type Function interface {
	Execute() value.Value
	Clone() Function
	Members() []Member
	SetMember(name string, n Node) error
	ReturnType() value.Type
}

// -----------------------------------------------------------------------
// nodeBase
// -----------------------------------------------------------------------

// nodeBase holds identity and edge bookkeeping shared by every kind.
// parents and children behave as ordered sets.
type nodeBase struct {
	id       uuid.UUID
	name     string
	parents  []Node
	children []Node
	touched  bool
}

func newBase(name string) nodeBase {
	return nodeBase{id: uuid.New(), name: name}
}

func (b *nodeBase) ID() uuid.UUID       { return b.id }
func (b *nodeBase) Name() string        { return b.name }
func (b *nodeBase) SetName(name string) { b.name = name }
func (b *nodeBase) IsTouched() bool     { return b.touched }

// Parents returns a copy of the parent list.
func (b *nodeBase) Parents() []Node { return slices.Clone(b.parents) }

// Children returns a copy of the child list.
func (b *nodeBase) Children() []Node { return slices.Clone(b.children) }

// AddParentNode records p as a parent. The caller registers the reciprocal child edge.
func (b *nodeBase) AddParentNode(p Node) {
	if !slices.Contains(b.parents, p) {
		b.parents = append(b.parents, p)
	}
}

// RemoveParentNode forgets p as a parent. The caller removes the reciprocal child edge.
func (b *nodeBase) RemoveParentNode(p Node) {
	b.parents = slices.DeleteFunc(b.parents, func(n Node) bool { return n == p })
}

// AddChildNode records c as a child. The caller registers the reciprocal parent edge.
func (b *nodeBase) AddChildNode(c Node) {
	if !slices.Contains(b.children, c) {
		b.children = append(b.children, c)
	}
}

// RemoveChildNode forgets c as a child.
func (b *nodeBase) RemoveChildNode(c Node) {
	b.children = slices.DeleteFunc(b.children, func(n Node) bool { return n == c })
}

func (b *nodeBase) hasParent(p Node) bool {
	return slices.Contains(b.parents, p)
}

func (b *nodeBase) touchChildren() {
	for _, c := range b.children {
		c.touchAffected()
	}
}

func (b *nodeBase) cloneChildren(clones *CloneMap) {
	for _, c := range slices.Clone(b.children) {
		c.CloneDAG(clones)
	}
}

// -----------------------------------------------------------------------
// Wiring helpers
// -----------------------------------------------------------------------

// checkMembers validates that every member is bound and that making it a
// parent of self keeps the graph acyclic. Nothing is mutated.
func checkMembers(self Node, members []Member) error {
	for _, m := range members {
		if m.Node == nil {
			return fmt.Errorf("%w: parameter %q of %q is unbound", ErrInvalidGraph, m.Name, self.Name())
		}
		if createsCycle(m.Node, self) {
			return fmt.Errorf("%w: %q as parameter %q of %q would close a cycle", ErrInvalidGraph, m.Node.Name(), m.Name, self.Name())
		}
	}
	return nil
}

// wire makes every member a parent of self and self a child of every member.
func wire(self Node, members []Member) {
	for _, m := range members {
		self.AddParentNode(m.Node)
		m.Node.AddChildNode(self)
	}
}

// unwire detaches self from all of its parents.
func unwire(self Node) {
	for _, p := range self.Parents() {
		p.RemoveChildNode(self)
		self.RemoveParentNode(p)
	}
}
