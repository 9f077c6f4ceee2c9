package model

import (
	"fmt"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// TypeModel is the value type of a model held by a node.
const TypeModel value.Type = "Model"

// Value lets a deterministic node hold a model.
type Value struct {
	Model *Model
}

func (v Value) Type() value.Type  { return TypeModel }
func (v Value) Clone() value.Value { return Value{Model: v.Model.Clone()} }

func (v Value) String() string {
	return fmt.Sprintf("Model with %d vertices", v.Model.Len())
}

// Constructor is the function of a node defined as model(sink). It builds a
// model from the DAG around its sink.
type Constructor struct {
	sink dag.Node
}

// NewConstructorNode returns a deterministic node whose value is a model of
// the DAG containing sink. Models built from a graph that includes such a
// node leave it out.
func NewConstructorNode(name string, sink dag.Node) (*dag.DeterministicNode, error) {
	return dag.NewDeterministicNode(name, &Constructor{sink: sink})
}

// TemplateType names the type the constructor produces.
func (c *Constructor) TemplateType() value.Type { return TypeModel }

func (c *Constructor) Execute() value.Value {
	m, err := New(c.sink)
	if err != nil {
		panic(fmt.Sprintf("model constructor: %v", err))
	}
	return Value{Model: m}
}

func (c *Constructor) Clone() dag.Function { return &Constructor{sink: c.sink} }

func (c *Constructor) Members() []dag.Member {
	return []dag.Member{{Name: "sinknode", Node: c.sink}}
}

func (c *Constructor) SetMember(name string, n dag.Node) error {
	if name != "sinknode" {
		return fmt.Errorf("model constructor has no member %q", name)
	}
	c.sink = n
	return nil
}

func (c *Constructor) ReturnType() value.Type { return TypeModel }

func isModelConstructor(n dag.Node) bool {
	d, ok := n.(*dag.DeterministicNode)
	if !ok {
		return false
	}
	c, ok := d.Function().(*Constructor)
	return ok && c.TemplateType() == TypeModel
}
