package expr

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// ErrUnboundIdentifier is returned when an expression names a node that was
// not supplied.
var ErrUnboundIdentifier = errors.New("unbound identifier")

// Function is a dag.Function computing an expression over its parent nodes.
type Function struct {
	src   string
	ast   Expr
	names []string
	nodes []dag.Node
}

// NewFunction parses src and binds every identifier to the node of the same
// name in nodes. The expression is evaluated once to reject operands of the
// wrong shape early.
func NewFunction(src string, nodes map[string]dag.Node) (*Function, error) {
	ast, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	f := &Function{src: src, ast: ast, names: Identifiers(ast)}
	f.nodes = make([]dag.Node, len(f.names))
	for i, name := range f.names {
		n, ok := nodes[name]
		if !ok || n == nil {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnboundIdentifier, name, src)
		}
		f.nodes[i] = n
	}
	if _, err := Evaluate(f.ast, f); err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", src, err)
	}
	return f, nil
}

// Source returns the expression text.
func (f *Function) Source() string { return f.src }

// Resolve implements Env over the bound nodes.
func (f *Function) Resolve(name string) (value.Value, bool) {
	i := slices.Index(f.names, name)
	if i < 0 {
		return nil, false
	}
	return f.nodes[i].Value(), true
}

// Execute evaluates the expression. A parent whose value changed shape since
// construction yields NaN.
func (f *Function) Execute() value.Value {
	x, err := Evaluate(f.ast, f)
	if err != nil {
		return value.Real(math.NaN())
	}
	return value.Real(x)
}

func (f *Function) Clone() dag.Function {
	return &Function{src: f.src, ast: f.ast, names: f.names, nodes: slices.Clone(f.nodes)}
}

func (f *Function) Members() []dag.Member {
	out := make([]dag.Member, len(f.names))
	for i, name := range f.names {
		out[i] = dag.Member{Name: name, Node: f.nodes[i]}
	}
	return out
}

func (f *Function) SetMember(name string, n dag.Node) error {
	i := slices.Index(f.names, name)
	if i < 0 {
		return fmt.Errorf("%w: %q in %q", ErrUnboundIdentifier, name, f.src)
	}
	f.nodes[i] = n
	return nil
}

func (f *Function) ReturnType() value.Type { return value.TypeReal }

func (f *Function) String() string { return f.src }
