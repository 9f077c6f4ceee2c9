package dag_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

func TestIsParentInDAG(t *testing.T) {
	g := buildChain(t)
	visited := make(map[uuid.UUID]struct{})
	if !dag.IsParentInDAG(g.z, g.lo, visited) {
		t.Error("lo should be an ancestor of z")
	}
	if dag.IsParentInDAG(g.x, g.z, make(map[uuid.UUID]struct{})) {
		t.Error("z is not an ancestor of x")
	}
	if _, ok := visited[g.y.ID()]; !ok {
		t.Error("visited should record examined nodes")
	}
}

func TestDeterministic_LazyRecompute(t *testing.T) {
	g := buildChain(t)
	if g.y.IsDirty() {
		t.Fatal("y should have been evaluated while building z")
	}
	mustSet(t, g.x, 2)
	if !g.y.IsDirty() || !g.y.IsTouched() {
		t.Error("touching x should dirty y")
	}
	if got := floatOf(t, g.y); got != 3 {
		t.Errorf("expected y = 3, got %g", got)
	}
	dag.Keep(g.x)
	if g.y.IsTouched() {
		t.Error("Keep should clean y")
	}
}

func TestSetFunction_RejectsCycle(t *testing.T) {
	g := buildChain(t)
	err := g.y.SetFunction(&shift{x: g.z})
	if err == nil {
		t.Fatal("expected an error for a function reading its own descendant")
	}
	if ps := g.y.Parents(); len(ps) != 1 || ps[0] != g.x {
		t.Errorf("y parents changed: %v", ps)
	}
}

func TestCloneDAG_Isolation(t *testing.T) {
	g := buildChain(t)
	clones := dag.NewCloneMap()
	g.z.CloneDAG(clones)

	if clones.Len() != 6 {
		t.Fatalf("expected one clone per reachable node (6), got %d", clones.Len())
	}
	seen := make(map[dag.Node]bool)
	for _, c := range clones.Clones() {
		if seen[c] {
			t.Fatalf("clone %s appears twice", c.Name())
		}
		seen[c] = true
	}

	cn, _ := clones.Lookup(g.x)
	xc := cn.(*dag.StochasticNode)
	if xc == g.x {
		t.Fatal("clone must be a distinct object")
	}
	mustSet(t, xc, 1)
	dag.Keep(xc)
	if floatOf(t, g.x) != 5 {
		t.Error("mutating the clone changed the original")
	}
	mustSet(t, g.x, 9)
	dag.Keep(g.x)
	if floatOf(t, xc) != 1 {
		t.Error("mutating the original changed the clone")
	}

	// Edge structure is isomorphic under the mapping.
	for _, orig := range clones.Originals() {
		c, _ := clones.Lookup(orig)
		op, cp := orig.Parents(), c.Parents()
		if len(op) != len(cp) {
			t.Fatalf("%s: %d parents vs %d", orig.Name(), len(op), len(cp))
		}
		for i := range op {
			want, _ := clones.Lookup(op[i])
			if cp[i] != want {
				t.Errorf("%s: parent %d not mapped", orig.Name(), i)
			}
		}
		if len(orig.Children()) != len(c.Children()) {
			t.Errorf("%s: child count differs", orig.Name())
		}
	}

	yc, _ := clones.Lookup(g.y)
	if yc.(*dag.DeterministicNode).Function().Members()[0].Node != xc {
		t.Error("cloned function should read the cloned parent")
	}
}

func TestCloneDAG_SharedVectorIsolation(t *testing.T) {
	a := dag.NewConstantNode("a", value.RealVector{1, 2})
	clones := dag.NewCloneMap()
	ac := a.CloneDAG(clones)
	if ac.Value().(value.RealVector)[0] != 1 {
		t.Fatal("clone should observe the original value")
	}
	a.Destroy()
	if ac.Value() == nil {
		t.Error("destroying the original must not empty the clone")
	}
}

func TestDestroy_Detaches(t *testing.T) {
	g := buildChain(t)
	g.z.Destroy()
	if len(g.y.Children()) != 0 || len(g.sd.Children()) != 0 {
		t.Error("parents should forget a destroyed child")
	}
	g.y.Destroy()
	if len(g.x.Children()) != 0 {
		t.Error("x should forget y")
	}
}

func TestCloneMap_Delete(t *testing.T) {
	g := buildChain(t)
	clones := dag.NewCloneMap()
	g.x.CloneDAG(clones)
	n := clones.Len()
	clones.Delete(g.y)
	if clones.Len() != n-1 {
		t.Errorf("expected %d entries, got %d", n-1, clones.Len())
	}
	if _, ok := clones.Lookup(g.y); ok {
		t.Error("deleted entry still present")
	}
	clones.Delete(g.y)
	if clones.Len() != n-1 {
		t.Error("deleting twice should be a no-op")
	}
}
