package mcmc

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
	"github.com/gyaneshwarpardhi/phylodag/internal/sample"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// normalMean builds mu ~ normal(0, 10), obs ~ normal(mu, 1) observed at 3.
func normalMean(t *testing.T, seed uint64) *model.Model {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, 0))
	zero := dag.NewConstantNode("zero", value.Real(0))
	ten := dag.NewConstantNode("ten", value.PositiveReal(10))
	one := dag.NewConstantNode("one", value.PositiveReal(1))
	mu, err := dag.NewStochasticNode("mu", dist.NewNormal(zero, ten), r)
	require.NoError(t, err)
	obs, err := dag.NewStochasticNode("obs", dist.NewNormal(mu, one), r)
	require.NoError(t, err)
	require.NoError(t, obs.Clamp(value.Real(3)))
	dag.Keep(obs)

	m, err := model.New(obs)
	require.NoError(t, err)
	return m
}

func stochastic(t *testing.T, m *model.Model, name string) *dag.StochasticNode {
	t.Helper()
	n, ok := m.Node(name)
	require.True(t, ok, "node %s", name)
	s, ok := n.(*dag.StochasticNode)
	require.True(t, ok, "%s is stochastic", name)
	return s
}

func assertNothingTouched(t *testing.T, m *model.Model) {
	t.Helper()
	for _, n := range m.DagNodes() {
		require.False(t, n.IsTouched(), "%s left touched", n.Name())
	}
}

func TestChain_NormalMeanPosterior(t *testing.T) {
	m := normalMean(t, 11)
	mu := stochastic(t, m, "mu")
	slide, err := NewSlide(mu, 2, 1)
	require.NoError(t, err)

	c, err := NewChain(0, m, []Move{slide}, rand.New(rand.NewPCG(5, 6)), nil)
	require.NoError(t, err)

	var sum float64
	var n int
	err = c.Run(context.Background(), 20000, 1, func(s sample.Sample) {
		if s.Generation <= 2000 {
			return
		}
		sum += s.Values["mu"].(float64)
		n++
	})
	require.NoError(t, err)
	assertNothingTouched(t, m)

	assert.InDelta(t, 3*100.0/101.0, sum/float64(n), 0.25)
	rate := c.Stats()[0].AcceptanceRate()
	assert.Greater(t, rate, 0.2)
	assert.Less(t, rate, 0.95)
	assert.Equal(t, 20000, c.Generation())
}

func TestChain_LnPosteriorMatchesFreshComputation(t *testing.T) {
	m := normalMean(t, 3)
	mu := stochastic(t, m, "mu")
	scale, err := NewScale(mu, 0.5, 1)
	require.NoError(t, err)
	slide, err := NewSlide(mu, 1, 2)
	require.NoError(t, err)
	c, err := NewChain(1, m, []Move{scale, slide}, rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)

	for range 200 {
		_, err := c.Step()
		require.NoError(t, err)
		assertNothingTouched(t, m)
	}
	obs := stochastic(t, m, "obs")
	x, _ := value.Float(mu.Value())
	want := dist.NewNormal(dag.NewConstantNode("", value.Real(0)), dag.NewConstantNode("", value.PositiveReal(10))).LnPdf(mu.Value()) +
		dist.NewNormal(dag.NewConstantNode("", value.Real(x)), dag.NewConstantNode("", value.PositiveReal(1))).LnPdf(obs.Value())
	assert.InDelta(t, want, c.LnPosterior(), 1e-9)
}

func TestChain_SameSeedSameTrace(t *testing.T) {
	template := normalMean(t, 9)
	run := func() []float64 {
		m := template.Clone()
		slide, err := NewSlide(stochastic(t, m, "mu"), 1, 1)
		require.NoError(t, err)
		c, err := NewChain(0, m, []Move{slide}, rand.New(rand.NewPCG(42, 0)), nil)
		require.NoError(t, err)
		var trace []float64
		require.NoError(t, c.Run(context.Background(), 300, 10, func(s sample.Sample) {
			trace = append(trace, s.LnPosterior)
		}))
		return trace
	}
	first, second := run(), run()
	assert.Len(t, first, 31, "initial state plus every 10th generation")
	assert.Equal(t, first, second)
}

func TestChain_StopsOnCancel(t *testing.T) {
	m := normalMean(t, 1)
	slide, err := NewSlide(stochastic(t, m, "mu"), 1, 1)
	require.NoError(t, err)
	c, err := NewChain(0, m, []Move{slide}, rand.New(rand.NewPCG(1, 2)), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Run(ctx, 100, 10, nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, c.Generation())
}

func TestNewChain_Errors(t *testing.T) {
	m := normalMean(t, 1)
	_, err := NewChain(0, m, nil, rand.New(rand.NewPCG(1, 2)), nil)
	assert.ErrorIs(t, err, ErrNoMoves)

	zero, err := NewSlide(stochastic(t, m, "mu"), 1, 0)
	require.NoError(t, err)
	_, err = NewChain(0, m, []Move{zero}, rand.New(rand.NewPCG(1, 2)), nil)
	assert.ErrorIs(t, err, ErrNoMoves)

	other := normalMean(t, 2)
	foreign, err := NewSlide(stochastic(t, other, "mu"), 1, 1)
	require.NoError(t, err)
	_, err = NewChain(0, m, []Move{foreign}, rand.New(rand.NewPCG(1, 2)), nil)
	assert.ErrorIs(t, err, model.ErrNodeNotInModel)
}

func TestMoves_RejectClampedTarget(t *testing.T) {
	m := normalMean(t, 1)
	obs := stochastic(t, m, "obs")
	_, err := NewSlide(obs, 1, 1)
	assert.ErrorIs(t, err, ErrClampedTarget)
	_, err = NewScale(obs, 1, 1)
	assert.ErrorIs(t, err, ErrClampedTarget)
}

func TestScale_HastingsIsLogFactor(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	rate := dag.NewConstantNode("rate", value.PositiveReal(1))
	x, err := dag.NewStochasticNode("x", dist.NewExponential(rate), r)
	require.NoError(t, err)
	before, _ := value.Float(x.Value())

	mv, err := NewScale(x, 1, 1)
	require.NoError(t, err)
	lnH, err := mv.Perform(r)
	require.NoError(t, err)
	after, _ := value.Float(x.Value())
	assert.InDelta(t, math.Log(after/before), lnH, 1e-12)
	assert.Equal(t, value.TypePositiveReal, x.Value().Type())

	dag.Restore(x)
	restored, _ := value.Float(x.Value())
	assert.Equal(t, before, restored)
}

func TestSlide_ReflectsIntoSupport(t *testing.T) {
	assert.InDelta(t, 0.2, reflect(-0.2, 0, 1), 1e-12)
	assert.InDelta(t, 0.7, reflect(1.3, 0, 1), 1e-12)
	assert.InDelta(t, 0.5, reflect(0.5, 0, 1), 1e-12)

	r := rand.New(rand.NewPCG(3, 4))
	a := dag.NewConstantNode("a", value.PositiveReal(1))
	p, err := dag.NewStochasticNode("p", dist.NewBeta(a, a), r)
	require.NoError(t, err)
	mv, err := NewSlide(p, 5, 1)
	require.NoError(t, err)
	for range 100 {
		_, err := mv.Perform(r)
		require.NoError(t, err)
		f, _ := value.Float(p.Value())
		require.GreaterOrEqual(t, f, 0.0)
		require.LessOrEqual(t, f, 1.0)
		dag.Keep(p)
	}
}

func TestSimplex_ProposesSimplexAndRestores(t *testing.T) {
	r := rand.New(rand.NewPCG(8, 8))
	alpha := dag.NewConstantNode("alpha", value.RealVector{2, 2, 2})
	pi, err := dag.NewStochasticNode("pi", dist.NewDirichlet(alpha), r)
	require.NoError(t, err)
	before := pi.Value().Clone()

	mv, err := NewSimplex(pi, 50, 1)
	require.NoError(t, err)
	lnH, err := mv.Perform(r)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(lnH))

	got, _ := value.Floats(pi.Value())
	total := 0.0
	for _, x := range got {
		total += x
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.NotEqual(t, before, pi.Value())
	assert.Equal(t, before, pi.StoredValue(), "the snapshot is not edited")

	dag.Restore(pi)
	assert.Equal(t, before, pi.Value())
}

func TestMoves_UnsupportedTargets(t *testing.T) {
	r := rand.New(rand.NewPCG(8, 8))
	alpha := dag.NewConstantNode("alpha", value.RealVector{1, 1})
	pi, err := dag.NewStochasticNode("pi", dist.NewDirichlet(alpha), r)
	require.NoError(t, err)
	_, err = NewSlide(pi, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedTarget)

	a := dag.NewConstantNode("a", value.PositiveReal(1))
	p, err := dag.NewStochasticNode("p", dist.NewBeta(a, a), r)
	require.NoError(t, err)
	_, err = NewScale(p, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedTarget, "probabilities cannot be scaled")
	_, err = NewSimplex(p, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedTarget)
}

func TestNewMoves_FromConfig(t *testing.T) {
	m := normalMean(t, 4)
	moves, err := NewMoves([]config.MoveDef{
		{Type: "slide", Node: "mu", Delta: 1, Weight: 1},
		{Type: "scale", Node: "mu", Lambda: 0.3, Weight: 2},
	}, m)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "slide(mu)", moves[0].Name())
	assert.Equal(t, "scale", moves[1].Kind())
	assert.Equal(t, 2.0, moves[1].Weight())

	_, err = NewMoves([]config.MoveDef{{Type: "slide", Node: "nope", Delta: 1}}, m)
	assert.ErrorIs(t, err, model.ErrNodeNotInModel)
	_, err = NewMoves([]config.MoveDef{{Type: "slide", Node: "zero", Delta: 1}}, m)
	assert.ErrorIs(t, err, ErrUnsupportedTarget)
	_, err = NewMoves([]config.MoveDef{{Type: "slide", Node: "obs", Delta: 1}}, m)
	assert.ErrorIs(t, err, ErrClampedTarget)
}
