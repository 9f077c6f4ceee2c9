package model_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

const coinYAML = `
version: v1
model:
  sinks: [flips]
  nodes:
    - name: a
      constant: 2
      type: PositiveReal
    - name: p
      distribution: beta
      params: {alpha: a, beta: a}
    - name: odds
      expression: "p / (1 - p)"
    - name: pi
      distribution: dirichlet
      params: {alpha: [1, 1, 1]}
    - name: k
      distribution: categorical
      params: {weights: pi}
      observed: 2
    - name: spread
      expression: "0.5 + k"
    - name: flips
      distribution: normal
      params: {mean: odds, sd: spread}
      observed: 1.2
    - name: whole
      model: flips
moves:
  - {type: slide, node: p, delta: 0.1}
`

func TestBuild_FromYAML(t *testing.T) {
	cfg, err := config.Parse([]byte(coinYAML))
	require.NoError(t, err)

	m, ws, err := model.Build(cfg.Model, dist.DefaultRegistry(), rand.New(rand.NewPCG(3, 3)))
	require.NoError(t, err)

	assert.Len(t, ws.Order, 8)
	assert.Equal(t, value.PositiveReal(2), ws.Nodes["a"].Value())

	flips := ws.Nodes["flips"].(*dag.StochasticNode)
	assert.True(t, flips.IsClamped())
	assert.False(t, flips.IsTouched(), "observed nodes are committed")
	assert.Equal(t, value.Real(1.2), flips.Value())

	k := ws.Nodes["k"].(*dag.StochasticNode)
	assert.Equal(t, value.Natural(2), k.Value(), "integral observation converted for a categorical")

	// Literal parameters become anonymous constants; the constructor is excised.
	_, ok := m.Node("pi.alpha")
	assert.True(t, ok)
	_, ok = m.Node("whole")
	assert.False(t, ok)
	// a, p, odds, pi, pi.alpha, k, spread, flips
	assert.Equal(t, 8, m.Len())
}

func TestBuild_Errors(t *testing.T) {
	reg := dist.DefaultRegistry()
	r := rand.New(rand.NewPCG(1, 1))

	cases := map[string]config.ModelSpec{
		"unknown distribution": {
			Sinks: []string{"x"},
			Nodes: []config.NodeDef{{Name: "x", Distribution: "cauchy"}},
		},
		"bad constant type": {
			Sinks: []string{"c"},
			Nodes: []config.NodeDef{{Name: "c", Constant: &config.Literal{Scalar: -1}, Type: "PositiveReal"}},
		},
		"observation of the wrong shape": {
			Sinks: []string{"x"},
			Nodes: []config.NodeDef{{
				Name:         "x",
				Distribution: "exponential",
				Params:       map[string]config.ParamRef{"rate": {Literal: &config.Literal{Scalar: 1}}},
				Observed:     &config.Literal{Vector: []float64{1, 2}, IsVector: true},
			}},
		},
		"not marginal": {
			Sinks: []string{"x"},
			Nodes: []config.NodeDef{{
				Name:         "x",
				Distribution: "exponential",
				Params:       map[string]config.ParamRef{"rate": {Literal: &config.Literal{Scalar: 1}}},
				Instantiated: new(bool),
			}},
		},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := model.Build(spec, reg, r)
			assert.Error(t, err)
		})
	}
}
