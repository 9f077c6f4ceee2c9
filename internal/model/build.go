package model

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/expr"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// Workspace holds the graph built from a model spec before it is copied
// into a Model.
type Workspace struct {
	Nodes map[string]dag.Node
	Order []dag.Node
}

// Build constructs the workspace graph declared by spec, drawing initial
// values from r, and returns a Model copied from the declared sinks.
// Observed nodes are clamped and committed.
func Build(spec config.ModelSpec, reg *dist.Registry, r *rand.Rand) (*Model, *Workspace, error) {
	ws := &Workspace{Nodes: make(map[string]dag.Node, len(spec.Nodes))}
	for _, nd := range spec.Nodes {
		n, err := buildNode(nd, ws, reg, r)
		if err != nil {
			return nil, nil, fmt.Errorf("node %s: %w", nd.Name, err)
		}
		ws.Nodes[nd.Name] = n
		ws.Order = append(ws.Order, n)
	}

	sinks := make([]dag.Node, 0, len(spec.Sinks))
	for _, s := range spec.Sinks {
		n, ok := ws.Nodes[s]
		if !ok {
			return nil, nil, fmt.Errorf("sink %q is not a declared node", s)
		}
		sinks = append(sinks, n)
	}
	m, err := New(sinks...)
	if err != nil {
		return nil, nil, err
	}
	return m, ws, nil
}

func buildNode(nd config.NodeDef, ws *Workspace, reg *dist.Registry, r *rand.Rand) (dag.Node, error) {
	lookup := func(name string) (dag.Node, error) {
		n, ok := ws.Nodes[name]
		if !ok {
			return nil, fmt.Errorf("unknown node %q", name)
		}
		return n, nil
	}

	switch {
	case nd.Constant != nil:
		v := literal(nd.Constant, value.Type(nd.Type))
		if nd.Type != "" {
			cv, ok := value.Convert(v, value.Type(nd.Type))
			if !ok {
				return nil, fmt.Errorf("constant %v is not a valid %s", v, nd.Type)
			}
			v = cv
		}
		return dag.NewConstantNode(nd.Name, v), nil

	case nd.Distribution != "":
		args := make(map[string]dag.Node, len(nd.Params))
		for _, p := range slices.Sorted(maps.Keys(nd.Params)) {
			pr := nd.Params[p]
			if pr.Literal != nil {
				args[p] = dag.NewConstantNode(nd.Name+"."+p, literal(pr.Literal, ""))
				continue
			}
			n, err := lookup(pr.Ref)
			if err != nil {
				return nil, err
			}
			args[p] = n
		}
		d, err := reg.New(nd.Distribution, args)
		if err != nil {
			return nil, err
		}
		n, err := dag.NewStochasticNode(nd.Name, d, r)
		if err != nil {
			return nil, err
		}
		if nd.Instantiated != nil && !*nd.Instantiated {
			if err := n.SetInstantiated(false); err != nil {
				return nil, err
			}
		}
		if nd.Observed != nil {
			if err := n.Clamp(literal(nd.Observed, d.VariableType())); err != nil {
				return nil, err
			}
			dag.Keep(n)
		}
		return n, nil

	case nd.Expression != "":
		fn, err := expr.NewFunction(nd.Expression, ws.Nodes)
		if err != nil {
			return nil, err
		}
		return dag.NewDeterministicNode(nd.Name, fn)

	case nd.Model != "":
		sink, err := lookup(nd.Model)
		if err != nil {
			return nil, err
		}
		return NewConstructorNode(nd.Name, sink)
	}
	return nil, fmt.Errorf("no definition")
}

// literal turns a config literal into a value. Integral scalars become
// Integer when want is an integer type, so they can be converted to it.
func literal(l *config.Literal, want value.Type) value.Value {
	if l.IsVector {
		return value.RealVector(slices.Clone(l.Vector))
	}
	if value.IsA(want, value.TypeInteger) && l.Scalar == math.Trunc(l.Scalar) {
		return value.Integer(int64(l.Scalar))
	}
	return value.Real(l.Scalar)
}
