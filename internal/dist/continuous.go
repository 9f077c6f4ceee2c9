package dist

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// lnPdfOf evaluates logProb on the scalar in v, returning -Inf for values
// that are not scalars.
func lnPdfOf(v value.Value, logProb func(float64) float64) float64 {
	x, ok := scalarOf(v)
	if !ok {
		return math.Inf(-1)
	}
	return logProb(x)
}

// -----------------------------------------------------------------------
// Uniform
// -----------------------------------------------------------------------

// Uniform is the continuous uniform distribution on [min, max].
type Uniform struct{ params }

func NewUniform(min, max dag.Node) *Uniform {
	return &Uniform{newParams("uniform", []string{"min", "max"}, []dag.Node{min, max})}
}

func (d *Uniform) gonum(src rand.Source) distuv.Uniform {
	return distuv.Uniform{Min: d.real(0), Max: d.real(1), Src: src}
}

func (d *Uniform) LnPdf(v value.Value) float64 { return lnPdfOf(v, d.gonum(nil).LogProb) }
func (d *Uniform) Rv(r *rand.Rand) value.Value { return value.Real(d.gonum(r).Rand()) }
func (d *Uniform) Clone() dag.Distribution     { return &Uniform{d.copy()} }
func (d *Uniform) VariableType() value.Type    { return value.TypeReal }

// -----------------------------------------------------------------------
// LogUniform
// -----------------------------------------------------------------------

// LogUniform has density proportional to 1/x on [min, max], min > 0.
type LogUniform struct{ params }

func NewLogUniform(min, max dag.Node) *LogUniform {
	return &LogUniform{newParams("loguniform", []string{"min", "max"}, []dag.Node{min, max})}
}

func (d *LogUniform) LnPdf(v value.Value) float64 {
	lo, hi := d.real(0), d.real(1)
	return lnPdfOf(v, func(x float64) float64 {
		if lo <= 0 || x < lo || x > hi {
			return math.Inf(-1)
		}
		return -math.Log(x) - math.Log(math.Log(hi)-math.Log(lo))
	})
}

func (d *LogUniform) Rv(r *rand.Rand) value.Value {
	u := distuv.Uniform{Min: math.Log(d.real(0)), Max: math.Log(d.real(1)), Src: r}
	return value.PositiveReal(math.Exp(u.Rand()))
}

func (d *LogUniform) Clone() dag.Distribution  { return &LogUniform{d.copy()} }
func (d *LogUniform) VariableType() value.Type { return value.TypePositiveReal }

// -----------------------------------------------------------------------
// Normal
// -----------------------------------------------------------------------

// Normal is the Gaussian distribution with the given mean and standard deviation.
type Normal struct{ params }

func NewNormal(mean, sd dag.Node) *Normal {
	return &Normal{newParams("normal", []string{"mean", "sd"}, []dag.Node{mean, sd})}
}

func (d *Normal) gonum(src rand.Source) distuv.Normal {
	return distuv.Normal{Mu: d.real(0), Sigma: d.real(1), Src: src}
}

func (d *Normal) LnPdf(v value.Value) float64 { return lnPdfOf(v, d.gonum(nil).LogProb) }
func (d *Normal) Rv(r *rand.Rand) value.Value { return value.Real(d.gonum(r).Rand()) }
func (d *Normal) Clone() dag.Distribution     { return &Normal{d.copy()} }
func (d *Normal) VariableType() value.Type    { return value.TypeReal }

// -----------------------------------------------------------------------
// LogNormal
// -----------------------------------------------------------------------

// LogNormal is the distribution of exp(X) for X ~ Normal(mu, sigma).
type LogNormal struct{ params }

func NewLogNormal(mu, sigma dag.Node) *LogNormal {
	return &LogNormal{newParams("lognormal", []string{"mu", "sigma"}, []dag.Node{mu, sigma})}
}

func (d *LogNormal) gonum(src rand.Source) distuv.LogNormal {
	return distuv.LogNormal{Mu: d.real(0), Sigma: d.real(1), Src: src}
}

func (d *LogNormal) LnPdf(v value.Value) float64 {
	return lnPdfOf(v, func(x float64) float64 {
		if x <= 0 {
			return math.Inf(-1)
		}
		return d.gonum(nil).LogProb(x)
	})
}

func (d *LogNormal) Rv(r *rand.Rand) value.Value { return value.PositiveReal(d.gonum(r).Rand()) }
func (d *LogNormal) Clone() dag.Distribution     { return &LogNormal{d.copy()} }
func (d *LogNormal) VariableType() value.Type    { return value.TypePositiveReal }

// -----------------------------------------------------------------------
// Exponential
// -----------------------------------------------------------------------

// Exponential is the exponential distribution with the given rate.
type Exponential struct{ params }

func NewExponential(rate dag.Node) *Exponential {
	return &Exponential{newParams("exponential", []string{"rate"}, []dag.Node{rate})}
}

func (d *Exponential) gonum(src rand.Source) distuv.Exponential {
	return distuv.Exponential{Rate: d.real(0), Src: src}
}

func (d *Exponential) LnPdf(v value.Value) float64 {
	return lnPdfOf(v, func(x float64) float64 {
		if x < 0 {
			return math.Inf(-1)
		}
		return d.gonum(nil).LogProb(x)
	})
}

func (d *Exponential) Rv(r *rand.Rand) value.Value { return value.PositiveReal(d.gonum(r).Rand()) }
func (d *Exponential) Clone() dag.Distribution     { return &Exponential{d.copy()} }
func (d *Exponential) VariableType() value.Type    { return value.TypePositiveReal }

// -----------------------------------------------------------------------
// Gamma
// -----------------------------------------------------------------------

// Gamma is the gamma distribution parameterised by shape and rate.
type Gamma struct{ params }

func NewGamma(shape, rate dag.Node) *Gamma {
	return &Gamma{newParams("gamma", []string{"shape", "rate"}, []dag.Node{shape, rate})}
}

func (d *Gamma) gonum(src rand.Source) distuv.Gamma {
	return distuv.Gamma{Alpha: d.real(0), Beta: d.real(1), Src: src}
}

func (d *Gamma) LnPdf(v value.Value) float64 {
	return lnPdfOf(v, func(x float64) float64 {
		if x <= 0 {
			return math.Inf(-1)
		}
		return d.gonum(nil).LogProb(x)
	})
}

func (d *Gamma) Rv(r *rand.Rand) value.Value { return value.PositiveReal(d.gonum(r).Rand()) }
func (d *Gamma) Clone() dag.Distribution     { return &Gamma{d.copy()} }
func (d *Gamma) VariableType() value.Type    { return value.TypePositiveReal }

// -----------------------------------------------------------------------
// Beta
// -----------------------------------------------------------------------

// Beta is the beta distribution on [0, 1].
type Beta struct{ params }

func NewBeta(alpha, beta dag.Node) *Beta {
	return &Beta{newParams("beta", []string{"alpha", "beta"}, []dag.Node{alpha, beta})}
}

func (d *Beta) gonum(src rand.Source) distuv.Beta {
	return distuv.Beta{Alpha: d.real(0), Beta: d.real(1), Src: src}
}

func (d *Beta) LnPdf(v value.Value) float64 {
	return lnPdfOf(v, func(x float64) float64 {
		if x < 0 || x > 1 {
			return math.Inf(-1)
		}
		return d.gonum(nil).LogProb(x)
	})
}

func (d *Beta) Rv(r *rand.Rand) value.Value { return value.Probability(d.gonum(r).Rand()) }
func (d *Beta) Clone() dag.Distribution     { return &Beta{d.copy()} }
func (d *Beta) VariableType() value.Type    { return value.TypeProbability }
