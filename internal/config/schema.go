package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelConfig is the top-level YAML structure.
type ModelConfig struct {
	Version string     `yaml:"version"`
	Engine  EngineConf `yaml:"engine"`
	Run     RunConf    `yaml:"run"`
	Model   ModelSpec  `yaml:"model"`
	Moves   []MoveDef  `yaml:"moves"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	ChainWorkers int `yaml:"chain_workers"`
	QueueDepth   int `yaml:"queue_depth"`
	RunTimeoutMs int `yaml:"run_timeout_ms"`
}

// RunConf holds the default sampler run; API callers may override it.
type RunConf struct {
	Chains      int    `yaml:"chains"`
	Generations int    `yaml:"generations"`
	SampleEvery int    `yaml:"sample_every"`
	Seed        uint64 `yaml:"seed"`
}

// ModelSpec declares the workspace graph. Nodes may only reference nodes
// declared before them.
type ModelSpec struct {
	Sinks []string  `yaml:"sinks"`
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef is a discriminated union: exactly one of Constant, Distribution,
// Expression or Model is set.
type NodeDef struct {
	Name string `yaml:"name"`
	// Type optionally narrows a constant, e.g. PositiveReal or Simplex.
	Type string `yaml:"type,omitempty"`

	Constant *Literal `yaml:"constant,omitempty"`

	Distribution string              `yaml:"distribution,omitempty"`
	Params       map[string]ParamRef `yaml:"params,omitempty"`
	Observed     *Literal            `yaml:"observed,omitempty"`
	Instantiated *bool               `yaml:"instantiated,omitempty"`

	Expression string `yaml:"expression,omitempty"`

	// Model names the sink of a nested model constructor.
	Model string `yaml:"model,omitempty"`
}

// MoveDef configures one proposal.
type MoveDef struct {
	Type   string  `yaml:"type" json:"type"` // slide | scale | simplex
	Node   string  `yaml:"node" json:"node"`
	Weight float64 `yaml:"weight" json:"weight"`
	Delta  float64 `yaml:"delta,omitempty" json:"delta,omitempty"`
	Lambda float64 `yaml:"lambda,omitempty" json:"lambda,omitempty"`
	Alpha  float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
}

// Literal is a number or a list of numbers.
type Literal struct {
	Scalar   float64
	Vector   []float64
	IsVector bool
}

func (l *Literal) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		l.IsVector = false
		return n.Decode(&l.Scalar)
	case yaml.SequenceNode:
		l.IsVector = true
		return n.Decode(&l.Vector)
	default:
		return fmt.Errorf("line %d: expected a number or a list of numbers", n.Line)
	}
}

func (l Literal) MarshalYAML() (any, error) {
	if l.IsVector {
		return l.Vector, nil
	}
	return l.Scalar, nil
}

// ParamRef binds a distribution parameter either to a declared node by name
// or to an inline literal.
type ParamRef struct {
	Ref     string
	Literal *Literal
}

func (p *ParamRef) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		p.Ref = n.Value
		return nil
	}
	var lit Literal
	if err := n.Decode(&lit); err != nil {
		return err
	}
	p.Literal = &lit
	return nil
}

func (p ParamRef) MarshalYAML() (any, error) {
	if p.Literal != nil {
		return p.Literal, nil
	}
	return p.Ref, nil
}
