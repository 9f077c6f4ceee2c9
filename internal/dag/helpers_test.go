package dag_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// shift returns the value of its single parameter plus a fixed offset.
type shift struct {
	x      dag.Node
	offset float64
}

func (f *shift) Execute() value.Value {
	x, _ := value.Float(f.x.Value())
	return value.Real(x + f.offset)
}

func (f *shift) Clone() dag.Function { cp := *f; return &cp }

func (f *shift) Members() []dag.Member { return []dag.Member{{Name: "x", Node: f.x}} }

func (f *shift) SetMember(name string, n dag.Node) error {
	if name != "x" {
		return fmt.Errorf("shift has no member %q", name)
	}
	f.x = n
	return nil
}

func (f *shift) ReturnType() value.Type { return value.TypeReal }

func newRand() *rand.Rand { return rand.New(rand.NewPCG(42, 1)) }

func constReal(name string, f float64) *dag.ConstantNode {
	return dag.NewConstantNode(name, value.Real(f))
}

func mustStochastic(t *testing.T, name string, d dag.Distribution) *dag.StochasticNode {
	t.Helper()
	n, err := dag.NewStochasticNode(name, d, newRand())
	if err != nil {
		t.Fatalf("NewStochasticNode(%q): %v", name, err)
	}
	return n
}

func mustSet(t *testing.T, n *dag.StochasticNode, f float64) {
	t.Helper()
	if err := n.SetValue(value.Real(f)); err != nil {
		t.Fatalf("SetValue(%q, %g): %v", n.Name(), f, err)
	}
}

// chainGraph builds x ~ Uniform(0, 10), y := x + 1, z ~ Normal(y, 1) with
// x committed at 5 and z clamped at 4.
type chainGraph struct {
	lo, hi, sd *dag.ConstantNode
	x, z       *dag.StochasticNode
	y          *dag.DeterministicNode
}

func buildChain(t *testing.T) chainGraph {
	t.Helper()
	g := chainGraph{lo: constReal("lo", 0), hi: constReal("hi", 10), sd: constReal("sd", 1)}
	g.x = mustStochastic(t, "x", dist.NewUniform(g.lo, g.hi))
	mustSet(t, g.x, 5)
	dag.Keep(g.x)

	var err error
	g.y, err = dag.NewDeterministicNode("y", &shift{x: g.x, offset: 1})
	if err != nil {
		t.Fatalf("NewDeterministicNode: %v", err)
	}
	g.z = mustStochastic(t, "z", dist.NewNormal(g.y, g.sd))
	if err := g.z.Clamp(value.Real(4)); err != nil {
		t.Fatalf("Clamp: %v", err)
	}
	dag.Keep(g.z)
	return g
}
