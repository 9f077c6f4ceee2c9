// Package model holds independent copies of DAGs built in a workspace.
package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
)

var (
	// ErrNoSinkNodes is returned by New when called without sink nodes.
	ErrNoSinkNodes = errors.New("no sink nodes specified")
	// ErrDisconnectedSink is returned by New when the sinks do not share one DAG.
	ErrDisconnectedSink = errors.New("not all sink nodes are connected to the same DAG")
	// ErrNodeNotInModel is returned by ClonedNodes for a node the model did not copy.
	ErrNodeNotInModel = errors.New("could not find original DAG node in model")
)

// Model owns a clone of every node connected to its sink nodes. Originals
// and clones never share mutable state.
type Model struct {
	nodes     []dag.Node
	originals []dag.Node
	clones    map[dag.Node]dag.Node
}

// New clones the DAG containing sinks. Cloning from the first sink reaches
// every connected node; each remaining sink must be among them. Nodes
// holding a model constructor are excised from the copy.
func New(sinks ...dag.Node) (*Model, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSinkNodes
	}
	cm := dag.NewCloneMap()
	sinks[0].CloneDAG(cm)
	for _, s := range sinks {
		if _, ok := cm.Lookup(s); !ok {
			return nil, fmt.Errorf("%w: %q", ErrDisconnectedSink, s.Name())
		}
	}

	for _, orig := range cm.Originals() {
		c, _ := cm.Lookup(orig)
		if isModelConstructor(c) {
			detach(c)
			cm.Delete(orig)
		}
	}
	return fromCloneMap(cm), nil
}

func fromCloneMap(cm *dag.CloneMap) *Model {
	m := &Model{
		nodes:     cm.Clones(),
		originals: cm.Originals(),
		clones:    make(map[dag.Node]dag.Node, cm.Len()),
	}
	for i, orig := range m.originals {
		m.clones[orig] = m.nodes[i]
	}
	return m
}

// detach removes every edge of n in both directions.
func detach(n dag.Node) {
	for _, p := range n.Parents() {
		n.RemoveParentNode(p)
		p.RemoveChildNode(n)
	}
	for _, c := range n.Children() {
		c.RemoveParentNode(n)
		n.RemoveChildNode(c)
	}
}

// Clone returns an independent copy of m. The copy maps the same workspace
// originals to its own clones.
func (m *Model) Clone() *Model {
	cm := dag.NewCloneMap()
	for _, n := range m.nodes {
		n.CloneDAG(cm)
	}
	cp := &Model{
		nodes:     make([]dag.Node, len(m.nodes)),
		originals: slices.Clone(m.originals),
		clones:    make(map[dag.Node]dag.Node, len(m.nodes)),
	}
	for i, orig := range m.originals {
		n, _ := cm.Lookup(m.nodes[i])
		cp.nodes[i] = n
		cp.clones[orig] = n
	}
	return cp
}

// DagNodes returns every node of the model. The order is stable across
// calls and across copies.
func (m *Model) DagNodes() []dag.Node {
	return slices.Clone(m.nodes)
}

// Len returns the number of nodes.
func (m *Model) Len() int { return len(m.nodes) }

// ClonedNodes maps workspace nodes to their copies in m.
func (m *Model) ClonedNodes(originals ...dag.Node) ([]dag.Node, error) {
	out := make([]dag.Node, len(originals))
	for i, o := range originals {
		c, ok := m.clones[o]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotInModel, o.Name())
		}
		out[i] = c
	}
	return out, nil
}

// Node returns the first model node with the given name.
func (m *Model) Node(name string) (dag.Node, bool) {
	for _, n := range m.nodes {
		if n.Name() == name {
			return n, true
		}
	}
	return nil, false
}

// IndexOf returns the position of n in DagNodes, or -1.
func (m *Model) IndexOf(n dag.Node) int {
	return slices.Index(m.nodes, n)
}

// StochasticNodes returns the stochastic nodes in DagNodes order.
func (m *Model) StochasticNodes() []*dag.StochasticNode {
	var out []*dag.StochasticNode
	for _, n := range m.nodes {
		if s, ok := n.(*dag.StochasticNode); ok {
			out = append(out, s)
		}
	}
	return out
}

// LnProbability sums the log-probability of every stochastic node.
func (m *Model) LnProbability() float64 {
	total := 0.0
	for _, s := range m.StochasticNodes() {
		total += s.CalculateLnProbability()
	}
	return total
}
