// Package dist provides the probability distributions owned by stochastic
// nodes. Every parameter is a DAG node; distributions read the parameter
// values lazily, so a change upstream is picked up on the next evaluation.
package dist

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// ErrUnknownParam is returned by SetMember for a name the distribution does
// not declare.
var ErrUnknownParam = errors.New("unknown distribution parameter")

// params is the ordered parameter list shared by all distributions.
type params struct {
	kind  string
	names []string
	nodes []dag.Node
}

func newParams(kind string, names []string, nodes []dag.Node) params {
	if len(names) != len(nodes) {
		panic(fmt.Sprintf("dist: %s takes %d parameters, got %d", kind, len(names), len(nodes)))
	}
	return params{kind: kind, names: names, nodes: append([]dag.Node(nil), nodes...)}
}

func (p *params) Members() []dag.Member {
	out := make([]dag.Member, len(p.names))
	for i, name := range p.names {
		out[i] = dag.Member{Name: name, Node: p.nodes[i]}
	}
	return out
}

func (p *params) SetMember(name string, n dag.Node) error {
	for i, have := range p.names {
		if have == name {
			p.nodes[i] = n
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, p.kind, name)
}

// copy returns params over the same nodes with independent slices.
func (p *params) copy() params {
	return params{kind: p.kind, names: p.names, nodes: append([]dag.Node(nil), p.nodes...)}
}

// real returns the scalar value of parameter i, or NaN when it is not a scalar.
func (p *params) real(i int) float64 {
	f, ok := value.Float(p.nodes[i].Value())
	if !ok {
		return math.NaN()
	}
	return f
}

// vector returns the elements of parameter i, or nil when it is not a vector.
func (p *params) vector(i int) []float64 {
	fs, _ := value.Floats(p.nodes[i].Value())
	return fs
}

func (p *params) String() string {
	parts := make([]string, len(p.names))
	for i, name := range p.names {
		label := "NULL"
		if n := p.nodes[i]; n != nil {
			label = n.Name()
		}
		parts[i] = name + "=" + label
	}
	return p.kind + "(" + strings.Join(parts, ", ") + ")"
}

// scalarOf reads v as a float, reporting false for non-scalar values.
func scalarOf(v value.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return value.Float(v)
}
