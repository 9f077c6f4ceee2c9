package mcmc

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distmv"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

var (
	// ErrClampedTarget is returned when a move is built on an observed node.
	ErrClampedTarget = errors.New("move target is clamped")
	// ErrUnsupportedTarget is returned when the target value has the wrong shape for the move.
	ErrUnsupportedTarget = errors.New("move does not support target")
)

// Move proposes a new value for a single stochastic node.
type Move interface {
	Kind() string
	Name() string
	Target() *dag.StochasticNode
	Weight() float64
	// Perform changes the target's value (touching it and its descendants)
	// and returns the log Hastings ratio of the proposal.
	Perform(r *rand.Rand) (float64, error)
}

type moveBase struct {
	kind   string
	target *dag.StochasticNode
	weight float64
}

func (b moveBase) Kind() string                { return b.kind }
func (b moveBase) Name() string                { return b.kind + "(" + b.target.Name() + ")" }
func (b moveBase) Target() *dag.StochasticNode { return b.target }
func (b moveBase) Weight() float64             { return b.weight }

func newBase(kind string, target *dag.StochasticNode, weight float64) (moveBase, error) {
	if target.IsClamped() {
		return moveBase{}, fmt.Errorf("%s on %q: %w", kind, target.Name(), ErrClampedTarget)
	}
	if !target.IsInstantiated() {
		return moveBase{}, fmt.Errorf("%s on %q: %w: node is integrated out", kind, target.Name(), ErrUnsupportedTarget)
	}
	return moveBase{kind: kind, target: target, weight: weight}, nil
}

// realScalar reports whether t is one of the continuous scalar types.
func realScalar(t value.Type) bool {
	return value.IsA(t, value.TypeReal)
}

// -----------------------------------------------------------------------
// Slide
// -----------------------------------------------------------------------

// Slide is a sliding-window proposal x' = x + delta*(u - 0.5), reflected
// back into the support of positive and probability types. It is symmetric.
type Slide struct {
	moveBase
	delta float64
}

func NewSlide(target *dag.StochasticNode, delta, weight float64) (*Slide, error) {
	b, err := newBase("slide", target, weight)
	if err != nil {
		return nil, err
	}
	if !realScalar(target.Value().Type()) {
		return nil, fmt.Errorf("slide on %q: %w: %s", target.Name(), ErrUnsupportedTarget, target.Value().Type())
	}
	return &Slide{moveBase: b, delta: delta}, nil
}

func (m *Slide) Perform(r *rand.Rand) (float64, error) {
	cur := m.target.Value()
	x, _ := value.Float(cur)
	proposed := x - m.delta/2 + m.delta*r.Float64()

	switch {
	case value.IsA(cur.Type(), value.TypeProbability):
		proposed = reflect(proposed, 0, 1)
	case value.IsA(cur.Type(), value.TypePositiveReal):
		proposed = math.Abs(proposed)
	}
	v, err := value.WithFloat(cur, proposed)
	if err != nil {
		return 0, err
	}
	return 0, m.target.SetValue(v)
}

// reflect folds x back into [lo, hi].
func reflect(x, lo, hi float64) float64 {
	for x < lo || x > hi {
		if x < lo {
			x = 2*lo - x
		}
		if x > hi {
			x = 2*hi - x
		}
	}
	return x
}

// -----------------------------------------------------------------------
// Scale
// -----------------------------------------------------------------------

// Scale multiplies the value by c = exp(lambda*(u - 0.5)). The log
// Hastings ratio is ln c.
type Scale struct {
	moveBase
	lambda float64
}

func NewScale(target *dag.StochasticNode, lambda, weight float64) (*Scale, error) {
	b, err := newBase("scale", target, weight)
	if err != nil {
		return nil, err
	}
	t := target.Value().Type()
	if !realScalar(t) || value.IsA(t, value.TypeProbability) {
		return nil, fmt.Errorf("scale on %q: %w: %s", target.Name(), ErrUnsupportedTarget, t)
	}
	return &Scale{moveBase: b, lambda: lambda}, nil
}

func (m *Scale) Perform(r *rand.Rand) (float64, error) {
	cur := m.target.Value()
	x, _ := value.Float(cur)
	lnC := m.lambda * (r.Float64() - 0.5)

	v, err := value.WithFloat(cur, x*math.Exp(lnC))
	if err != nil {
		return 0, err
	}
	if err := m.target.SetValue(v); err != nil {
		return 0, err
	}
	return lnC, nil
}

// -----------------------------------------------------------------------
// Simplex
// -----------------------------------------------------------------------

// Simplex draws a new simplex from a Dirichlet centred on the current one
// with concentration alpha*x. Larger alpha makes smaller steps.
type Simplex struct {
	moveBase
	alpha float64
}

func NewSimplex(target *dag.StochasticNode, alpha, weight float64) (*Simplex, error) {
	b, err := newBase("simplex", target, weight)
	if err != nil {
		return nil, err
	}
	if target.Value().Type() != value.TypeSimplex {
		return nil, fmt.Errorf("simplex on %q: %w: %s", target.Name(), ErrUnsupportedTarget, target.Value().Type())
	}
	return &Simplex{moveBase: b, alpha: alpha}, nil
}

func (m *Simplex) Perform(r *rand.Rand) (float64, error) {
	cur, _ := value.Floats(m.target.Value())
	forward, ok := m.around(cur, r)
	if !ok {
		return math.Inf(-1), nil
	}
	proposed := forward.Rand(nil)
	backward, ok := m.around(proposed, nil)
	if !ok {
		return math.Inf(-1), nil
	}
	lnHastings := backward.LogProb(cur) - forward.LogProb(proposed)

	err := m.target.UpdateValue(func(v value.Value) {
		copy(v.(value.Simplex), proposed)
	})
	return lnHastings, err
}

// around returns the proposal density centred on x, false when some
// component has collapsed to zero.
func (m *Simplex) around(x []float64, src rand.Source) (*distmv.Dirichlet, bool) {
	conc := make([]float64, len(x))
	for i, xi := range x {
		conc[i] = m.alpha * xi
		if !(conc[i] > 0) {
			return nil, false
		}
	}
	return distmv.NewDirichlet(conc, src), true
}

// -----------------------------------------------------------------------
// Construction from config
// -----------------------------------------------------------------------

// NewMoves builds the configured moves against the nodes of m.
func NewMoves(defs []config.MoveDef, m *model.Model) ([]Move, error) {
	moves := make([]Move, 0, len(defs))
	for i, d := range defs {
		n, ok := m.Node(d.Node)
		if !ok {
			return nil, fmt.Errorf("moves[%d]: %w: %q", i, model.ErrNodeNotInModel, d.Node)
		}
		target, ok := n.(*dag.StochasticNode)
		if !ok {
			return nil, fmt.Errorf("moves[%d]: %w: %q is %s", i, ErrUnsupportedTarget, d.Node, n.Kind())
		}
		var (
			mv  Move
			err error
		)
		switch d.Type {
		case "slide":
			mv, err = NewSlide(target, d.Delta, d.Weight)
		case "scale":
			mv, err = NewScale(target, d.Lambda, d.Weight)
		case "simplex":
			mv, err = NewSimplex(target, d.Alpha, d.Weight)
		default:
			err = fmt.Errorf("unknown move type %q", d.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("moves[%d]: %w", i, err)
		}
		moves = append(moves, mv)
	}
	return moves, nil
}
