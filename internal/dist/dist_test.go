package dist_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

func constant(name string, v value.Value) *dag.ConstantNode {
	return dag.NewConstantNode(name, v)
}

func TestUniform_LnPdf(t *testing.T) {
	d := dist.NewUniform(constant("a", value.Real(0)), constant("b", value.Real(10)))
	assert.InDelta(t, -math.Log(10), d.LnPdf(value.Real(3)), 1e-12)
	assert.True(t, math.IsInf(d.LnPdf(value.Real(11)), -1))
	assert.True(t, math.IsInf(d.LnPdf(value.RealVector{1}), -1), "non-scalar has no density")
}

func TestUniform_RvWithinBounds(t *testing.T) {
	d := dist.NewUniform(constant("a", value.Real(2)), constant("b", value.Real(3)))
	r := rand.New(rand.NewPCG(1, 2))
	for range 100 {
		x, ok := value.Float(d.Rv(r))
		require.True(t, ok)
		assert.GreaterOrEqual(t, x, 2.0)
		assert.LessOrEqual(t, x, 3.0)
	}
}

func TestRv_DeterministicForSeed(t *testing.T) {
	d := dist.NewNormal(constant("mu", value.Real(0)), constant("sd", value.PositiveReal(1)))
	a := d.Rv(rand.New(rand.NewPCG(7, 7)))
	b := d.Rv(rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, a, b)
}

func TestLogUniform(t *testing.T) {
	d := dist.NewLogUniform(constant("lo", value.PositiveReal(1)), constant("hi", value.PositiveReal(math.E)))
	assert.InDelta(t, -math.Log(2), d.LnPdf(value.PositiveReal(2)), 1e-12)
	assert.True(t, math.IsInf(d.LnPdf(value.PositiveReal(0.5)), -1))
	x, _ := value.Float(d.Rv(rand.New(rand.NewPCG(3, 4))))
	assert.True(t, x >= 1 && x <= math.E)
}

func TestExponentialAndGamma(t *testing.T) {
	rate := constant("rate", value.PositiveReal(2))
	e := dist.NewExponential(rate)
	assert.InDelta(t, math.Log(2)-2*1.5, e.LnPdf(value.PositiveReal(1.5)), 1e-12)
	assert.True(t, math.IsInf(e.LnPdf(value.Real(-1)), -1))

	g := dist.NewGamma(constant("shape", value.PositiveReal(1)), rate)
	assert.InDelta(t, e.LnPdf(value.Real(0.7)), g.LnPdf(value.Real(0.7)), 1e-12, "gamma(1, r) is exponential(r)")
	assert.Equal(t, value.TypePositiveReal, g.VariableType())
}

func TestBeta(t *testing.T) {
	d := dist.NewBeta(constant("a", value.PositiveReal(1)), constant("b", value.PositiveReal(1)))
	assert.InDelta(t, 0, d.LnPdf(value.Probability(0.3)), 1e-12)
	assert.True(t, math.IsInf(d.LnPdf(value.Real(1.2)), -1))
	assert.Equal(t, value.TypeProbability, d.Rv(rand.New(rand.NewPCG(1, 1))).Type())
}

func TestDirichlet(t *testing.T) {
	d := dist.NewDirichlet(constant("alpha", value.RealVector{1, 1, 1}))
	// Dirichlet(1,1,1) is uniform on the 2-simplex: density Gamma(3) = 2.
	assert.InDelta(t, math.Log(2), d.LnPdf(value.Simplex{0.2, 0.3, 0.5}), 1e-9)
	assert.True(t, math.IsInf(d.LnPdf(value.Simplex{0.5, 0.5}), -1), "dimension mismatch")

	s, ok := value.Floats(d.Rv(rand.New(rand.NewPCG(5, 6))))
	require.True(t, ok)
	require.Len(t, s, 3)
	assert.InDelta(t, 1, s[0]+s[1]+s[2], 1e-9)
}

func TestCategorical(t *testing.T) {
	d := dist.NewCategorical(constant("w", value.RealVector{1, 3}))
	assert.InDelta(t, math.Log(0.75), d.LnPdf(value.Natural(1)), 1e-12)
	assert.True(t, math.IsInf(d.LnPdf(value.Natural(2)), -1))
	assert.Equal(t, 0.0, d.LnMarginalPdf())

	var _ dag.MarginalDistribution = d
}

func TestPointMass(t *testing.T) {
	d := dist.NewPointMass(constant("at", value.RealVector{1, 2}))
	assert.Equal(t, 0.0, d.LnPdf(value.RealVector{1, 2}))
	assert.True(t, math.IsInf(d.LnPdf(value.RealVector{1, 3}), -1))
	assert.Equal(t, value.TypeRealVector, d.VariableType())
	assert.Equal(t, value.RealVector{1, 2}, d.Rv(nil))
}

func TestDistribution_ReadsParentsLazily(t *testing.T) {
	lo := constant("lo", value.Real(0))
	hiPrior := dist.NewUniform(constant("a", value.Real(5)), constant("b", value.Real(20)))
	hi, err := dag.NewStochasticNode("hi", hiPrior, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	require.NoError(t, hi.SetValue(value.Real(10)))
	dag.Keep(hi)

	d := dist.NewUniform(lo, hi)
	assert.InDelta(t, -math.Log(10), d.LnPdf(value.Real(1)), 1e-12)

	require.NoError(t, hi.SetValue(value.Real(20)))
	assert.InDelta(t, -math.Log(20), d.LnPdf(value.Real(1)), 1e-12)
}

func TestMembersAndSetMember(t *testing.T) {
	a, b, c := constant("a", value.Real(0)), constant("b", value.Real(1)), constant("c", value.Real(2))
	d := dist.NewUniform(a, b)
	require.Equal(t, []dag.Member{{Name: "min", Node: a}, {Name: "max", Node: b}}, d.Members())

	clone := d.Clone()
	require.NoError(t, clone.SetMember("max", c))
	assert.Same(t, b, d.Members()[1].Node, "clone rebinding must not leak into the original")
	assert.Same(t, c, clone.Members()[1].Node)

	err := d.SetMember("mode", c)
	assert.ErrorIs(t, err, dist.ErrUnknownParam)
}

func TestRegistry(t *testing.T) {
	r := dist.DefaultRegistry()
	assert.Contains(t, r.Names(), "dirichlet")

	d, err := r.New("exponential", map[string]dag.Node{"rate": constant("r", value.PositiveReal(1))})
	require.NoError(t, err)
	assert.IsType(t, &dist.Exponential{}, d)

	_, err = r.New("nope", nil)
	assert.ErrorIs(t, err, dist.ErrUnknownDistribution)

	_, err = r.New("uniform", map[string]dag.Node{"min": constant("a", value.Real(0))})
	assert.ErrorContains(t, err, `missing parameter "max"`)

	_, err = r.New("exponential", map[string]dag.Node{
		"rate":  constant("r", value.PositiveReal(1)),
		"shape": constant("s", value.PositiveReal(1)),
	})
	assert.ErrorIs(t, err, dist.ErrUnknownParam)

	assert.Panics(t, func() {
		r.Register(dist.Spec{Name: "uniform"})
	})
}
