package dist

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// -----------------------------------------------------------------------
// Dirichlet
// -----------------------------------------------------------------------

// Dirichlet is the Dirichlet distribution over simplices of len(alpha).
type Dirichlet struct{ params }

func NewDirichlet(alpha dag.Node) *Dirichlet {
	return &Dirichlet{newParams("dirichlet", []string{"alpha"}, []dag.Node{alpha})}
}

func (d *Dirichlet) gonum(src rand.Source) (*distmv.Dirichlet, bool) {
	alpha := d.vector(0)
	if len(alpha) == 0 {
		return nil, false
	}
	for _, a := range alpha {
		if !(a > 0) {
			return nil, false
		}
	}
	return distmv.NewDirichlet(alpha, src), true
}

func (d *Dirichlet) LnPdf(v value.Value) float64 {
	x, ok := value.Floats(v)
	dd, valid := d.gonum(nil)
	if !ok || !valid || len(x) != dd.Dim() {
		return math.Inf(-1)
	}
	return dd.LogProb(x)
}

func (d *Dirichlet) Rv(r *rand.Rand) value.Value {
	dd, ok := d.gonum(r)
	if !ok {
		return value.Simplex(nil)
	}
	return value.Simplex(dd.Rand(nil))
}

func (d *Dirichlet) Clone() dag.Distribution  { return &Dirichlet{d.copy()} }
func (d *Dirichlet) VariableType() value.Type { return value.TypeSimplex }

// -----------------------------------------------------------------------
// Categorical
// -----------------------------------------------------------------------

// Categorical draws a 0-based category index with probability proportional
// to weights. It can be integrated out.
type Categorical struct{ params }

func NewCategorical(weights dag.Node) *Categorical {
	return &Categorical{newParams("categorical", []string{"weights"}, []dag.Node{weights})}
}

func (d *Categorical) gonum(src rand.Source) (distuv.Categorical, bool) {
	w := d.vector(0)
	total := 0.0
	for _, x := range w {
		if x < 0 {
			return distuv.Categorical{}, false
		}
		total += x
	}
	if !(total > 0) {
		return distuv.Categorical{}, false
	}
	return distuv.NewCategorical(w, src), true
}

func (d *Categorical) LnPdf(v value.Value) float64 {
	c, ok := d.gonum(nil)
	if !ok {
		return math.Inf(-1)
	}
	return lnPdfOf(v, c.LogProb)
}

// LnMarginalPdf is the log of the total probability over the support.
func (d *Categorical) LnMarginalPdf() float64 {
	if _, ok := d.gonum(nil); !ok {
		return math.Inf(-1)
	}
	return 0
}

func (d *Categorical) Rv(r *rand.Rand) value.Value {
	c, ok := d.gonum(r)
	if !ok {
		return value.Natural(0)
	}
	return value.Natural(int64(c.Rand()))
}

func (d *Categorical) Clone() dag.Distribution  { return &Categorical{d.copy()} }
func (d *Categorical) VariableType() value.Type { return value.TypeNatural }

// -----------------------------------------------------------------------
// PointMass
// -----------------------------------------------------------------------

// PointMass puts all probability on the value of its parameter.
type PointMass struct{ params }

func NewPointMass(at dag.Node) *PointMass {
	return &PointMass{newParams("pointmass", []string{"value"}, []dag.Node{at})}
}

func (d *PointMass) LnPdf(v value.Value) float64 {
	if sameValue(v, d.nodes[0].Value()) {
		return 0
	}
	return math.Inf(-1)
}

func (d *PointMass) Rv(*rand.Rand) value.Value { return d.nodes[0].Value().Clone() }
func (d *PointMass) Clone() dag.Distribution   { return &PointMass{d.copy()} }
func (d *PointMass) VariableType() value.Type  { return d.nodes[0].Value().Type() }

func sameValue(a, b value.Value) bool {
	if x, ok := scalarOf(a); ok {
		y, ok := scalarOf(b)
		return ok && x == y
	}
	xs, ok := value.Floats(a)
	if !ok {
		return false
	}
	ys, ok := value.Floats(b)
	if !ok || len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i] != ys[i] {
			return false
		}
	}
	return true
}
