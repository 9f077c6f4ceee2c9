package dag

import (
	"github.com/google/uuid"
)

// IsParentInDAG reports whether candidate is reachable from start by
// following parent edges. Nodes already in visited are skipped and every
// node examined is added to it, so shared ancestors are searched once. The
// caller owns visited and may reuse it to validate several edges against the
// same graph.
func IsParentInDAG(start, candidate Node, visited map[uuid.UUID]struct{}) bool {
	for _, p := range start.Parents() {
		if _, done := visited[p.ID()]; done {
			continue
		}
		visited[p.ID()] = struct{}{}
		if p == candidate {
			return true
		}
		if IsParentInDAG(p, candidate, visited) {
			return true
		}
	}
	return false
}

// createsCycle reports whether the edge parent -> child would close a cycle.
func createsCycle(parent, child Node) bool {
	if parent == child {
		return true
	}
	return IsParentInDAG(parent, child, make(map[uuid.UUID]struct{}))
}

// CloneMap maps original nodes to their clones during CloneDAG and remembers
// the order in which clones were created.
type CloneMap struct {
	originals []Node
	clones    map[Node]Node
}

// NewCloneMap allocates an empty CloneMap.
func NewCloneMap() *CloneMap {
	return &CloneMap{clones: make(map[Node]Node)}
}

// Lookup returns the clone of orig, if it has been cloned.
func (m *CloneMap) Lookup(orig Node) (Node, bool) {
	c, ok := m.clones[orig]
	return c, ok
}

// Len returns the number of cloned nodes.
func (m *CloneMap) Len() int {
	return len(m.originals)
}

// Originals returns the cloned originals in clone-creation order.
func (m *CloneMap) Originals() []Node {
	out := make([]Node, len(m.originals))
	copy(out, m.originals)
	return out
}

// Clones returns the clones in creation order.
func (m *CloneMap) Clones() []Node {
	out := make([]Node, len(m.originals))
	for i, o := range m.originals {
		out[i] = m.clones[o]
	}
	return out
}

// Delete forgets orig and its clone.
func (m *CloneMap) Delete(orig Node) {
	if _, ok := m.clones[orig]; !ok {
		return
	}
	delete(m.clones, orig)
	for i, o := range m.originals {
		if o == orig {
			m.originals = append(m.originals[:i], m.originals[i+1:]...)
			break
		}
	}
}

// register must run before a clone recurses into its neighbours.
func (m *CloneMap) register(orig, clone Node) {
	m.originals = append(m.originals, orig)
	m.clones[orig] = clone
}
