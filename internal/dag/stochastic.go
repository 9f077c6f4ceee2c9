package dag

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// StochasticNode holds a value drawn from, or observed under, its
// distribution. Per proposal it moves CLEAN -> touched -> CLEAN through
// Touch and then exactly one of KeepMe or RestoreMe.
//
// While untouched the stored value is empty, the stored log-probability is
// unset and lnProb is valid for the current value and parents.
type StochasticNode struct {
	nodeBase
	dist Distribution

	value  value.Holder
	stored value.Holder

	lnProb          float64
	storedLnProb    float64
	hasStoredLnProb bool

	needsRecalculation bool
	clamped            bool
	instantiated       bool
}

// NewStochasticNode wires the distribution's members as parents, draws the
// initial value from the distribution using r and computes its
// log-probability. It fails with ErrInvalidGraph, before any edge is added,
// if a member is unbound or would close a cycle.
func NewStochasticNode(name string, d Distribution, r *rand.Rand) (*StochasticNode, error) {
	n := &StochasticNode{
		nodeBase:           newBase(name),
		dist:               d,
		needsRecalculation: true,
		instantiated:       true,
	}
	members := d.Members()
	if err := checkMembers(n, members); err != nil {
		return nil, err
	}
	wire(n, members)

	v := d.Rv(r)
	if v == nil {
		panic(fmt.Sprintf("dag: distribution of %q drew a nil value", name))
	}
	n.value = value.NewHolder(v)
	n.CalculateLnProbability()
	return n, nil
}

// Clone returns a copy of n attached to the same parent nodes. The
// distribution and values are deep-copied; cached state is carried over.
func (n *StochasticNode) Clone() *StochasticNode {
	cp := &StochasticNode{
		nodeBase:           newBase(n.name),
		dist:               n.dist.Clone(),
		lnProb:             n.lnProb,
		storedLnProb:       n.storedLnProb,
		hasStoredLnProb:    n.hasStoredLnProb,
		needsRecalculation: n.needsRecalculation,
		clamped:            n.clamped,
		instantiated:       n.instantiated,
	}
	cp.touched = n.touched
	cp.value = value.NewHolder(n.value.Get().Clone())
	if !n.stored.IsEmpty() {
		cp.stored = value.NewHolder(n.stored.Get().Clone())
	}
	wire(cp, cp.dist.Members())
	return cp
}

func (n *StochasticNode) Kind() Kind { return KindStochastic }

// Value returns the current value.
func (n *StochasticNode) Value() value.Value { return n.value.Get() }

// StoredValue returns the value before the current touch, or the current
// value when the node is not touched or the value has not been replaced.
func (n *StochasticNode) StoredValue() value.Value {
	if !n.touched || n.stored.IsEmpty() {
		return n.value.Get()
	}
	return n.stored.Get()
}

// Distribution returns the owned distribution.
func (n *StochasticNode) Distribution() Distribution { return n.dist }

func (n *StochasticNode) IsClamped() bool          { return n.clamped }
func (n *StochasticNode) IsInstantiated() bool     { return n.instantiated }
func (n *StochasticNode) NeedsRecalculation() bool { return n.needsRecalculation }

// StoredLnProbability returns the log-probability captured by the first
// touch. The second result is false outside a touched window.
func (n *StochasticNode) StoredLnProbability() (float64, bool) {
	return n.storedLnProb, n.hasStoredLnProb
}

// CalculateLnProbability returns the cached log-probability, recomputing it
// only when the node has been marked for recalculation. Non-finite results
// are ordinary outcomes.
func (n *StochasticNode) CalculateLnProbability() float64 {
	if n.needsRecalculation {
		if n.instantiated {
			n.lnProb = n.dist.LnPdf(n.value.Get())
		} else {
			n.lnProb = n.dist.(MarginalDistribution).LnMarginalPdf()
		}
		n.needsRecalculation = false
	}
	return n.lnProb
}

// touchMe captures lnProb on the first touch and always flags a recompute.
func (n *StochasticNode) touchMe() {
	if !n.touched {
		n.touched = true
		n.storedLnProb = n.lnProb
		n.hasStoredLnProb = true
	}
	n.needsRecalculation = true
}

// Touch marks n for recalculation and propagates to its children. The value
// itself is only snapshotted when it is replaced.
func (n *StochasticNode) Touch() {
	n.touchMe()
	n.touchChildren()
}

// touchAffected is called when a parent changed: the value is unchanged, so
// an instantiated node stops the propagation here.
func (n *StochasticNode) touchAffected() {
	n.touchMe()
	if !n.instantiated {
		n.touchChildren()
	}
}

// SetValue replaces the value. The value current at the first replacement
// since the last commit is kept for rollback. Fails with ErrIllegalState on
// a clamped node.
func (n *StochasticNode) SetValue(v value.Value) error {
	if v == nil {
		panic(fmt.Sprintf("dag: setting nil value on %q", n.name))
	}
	if n.clamped {
		return fmt.Errorf("%w: cannot change value of clamped node %q", ErrIllegalState, n.name)
	}
	n.Touch()
	if n.stored.IsEmpty() {
		n.stored = n.value
	} else {
		n.value.Release()
	}
	n.value = value.NewHolder(v)
	return nil
}

// UpdateValue edits the value in place. The rollback snapshot shares the
// storage, so the edit lands on a private copy.
func (n *StochasticNode) UpdateValue(edit func(v value.Value)) error {
	if n.clamped {
		return fmt.Errorf("%w: cannot change value of clamped node %q", ErrIllegalState, n.name)
	}
	n.Touch()
	if n.stored.IsEmpty() {
		n.stored = n.value.Share()
	}
	edit(n.value.Mutable())
	return nil
}

// Clamp fixes the node to observed data. Observed values of the required
// type (or a subtype) are used directly, convertible values are converted,
// anything else fails with a *TypeMismatchError. Clamping a touched node
// fails with ErrIllegalState. The node is left touched with a freshly
// computed lnProb; commit with Keep.
func (n *StochasticNode) Clamp(observed value.Value) error {
	if observed == nil {
		panic(fmt.Sprintf("dag: clamping %q to a nil value", n.name))
	}
	if n.touched {
		return fmt.Errorf("%w: cannot clamp stochastic node %q in volatile state", ErrIllegalState, n.name)
	}
	required := n.dist.VariableType()
	v := observed
	if !value.IsA(observed.Type(), required) {
		converted, ok := value.Convert(observed, required)
		if !ok {
			return &TypeMismatchError{Node: n.name, Supplied: observed.Type(), Required: required}
		}
		v = converted
	}

	n.Touch()
	n.value.Release()
	n.value = value.NewHolder(v)
	n.clamped = true
	n.CalculateLnProbability()
	return nil
}

// Unclamp frees the node; the observed value becomes its starting point.
func (n *StochasticNode) Unclamp() {
	n.clamped = false
}

// SetInstantiated switches between a sampled value (true) and a value
// integrated out by the distribution (false). Integrating out requires a
// MarginalDistribution.
func (n *StochasticNode) SetInstantiated(instantiated bool) error {
	if !instantiated {
		if _, ok := n.dist.(MarginalDistribution); !ok {
			return fmt.Errorf("%w: distribution of %q cannot be integrated out", ErrIllegalState, n.name)
		}
	}
	n.instantiated = instantiated
	n.needsRecalculation = true
	n.CalculateLnProbability()
	return nil
}

// SetDistribution replaces the distribution and rewires the parents,
// leaving the node unchanged on error. The node is touched so the new
// density is picked up; commit with Keep.
func (n *StochasticNode) SetDistribution(d Distribution) error {
	members := d.Members()
	if err := checkMembers(n, members); err != nil {
		return err
	}
	if !n.instantiated {
		if _, ok := d.(MarginalDistribution); !ok {
			return fmt.Errorf("%w: distribution of %q cannot be integrated out", ErrIllegalState, n.name)
		}
	}
	unwire(n)
	n.dist = d
	wire(n, members)
	n.touchMe()
	return nil
}

// GetLnProbabilityRatio returns lnProb(now) - lnProb(before the touch), or
// 0 for an untouched node.
func (n *StochasticNode) GetLnProbabilityRatio() float64 {
	if !n.touched {
		return 0.0
	}
	return n.CalculateLnProbability() - n.storedLnProb
}

// KeepMe commits the current value. Calling it on an untouched node is a no-op.
func (n *StochasticNode) KeepMe() {
	if n.touched {
		n.stored.Release()
		n.storedLnProb = 0
		n.hasStoredLnProb = false
		if n.needsRecalculation {
			n.CalculateLnProbability()
		}
	}
	n.touched = false
}

// RestoreMe rolls back to the value and log-probability before the touch.
// A clamped node keeps its value; only the probability rolls back.
func (n *StochasticNode) RestoreMe() {
	if n.touched {
		if !n.clamped && !n.stored.IsEmpty() {
			n.value.Release()
			n.value = n.stored
			n.stored = value.Holder{}
		}
		n.stored.Release()
		n.lnProb = n.storedLnProb
		n.storedLnProb = 0
		n.hasStoredLnProb = false
		n.needsRecalculation = false
	}
	n.touched = false
}

// GetAffected inserts n. Recursion continues into the children only when n
// is integrated out; a sampled value shields its descendants.
func (n *StochasticNode) GetAffected(affected AffectedSet) {
	affected.Add(n)
	if !n.instantiated {
		for _, c := range n.children {
			c.GetAffected(affected)
		}
	}
}

// SwapParentNode replaces oldParent by newParent, rebinding the distribution
// members that referenced it. Fails with ErrNotAParent when oldParent is not
// a parent and with ErrInvalidGraph when newParent would close a cycle; in
// both cases nothing changes. Unclamped nodes are touched. Clamped nodes are
// rewired only, and a caller relying on their lnProb must force a recompute.
func (n *StochasticNode) SwapParentNode(oldParent, newParent Node) error {
	if !n.hasParent(oldParent) {
		return fmt.Errorf("%w: %q is not a parent of %q", ErrNotAParent, oldParent.Name(), n.name)
	}
	if createsCycle(newParent, n) {
		return fmt.Errorf("%w: %q as parent of %q would close a cycle", ErrInvalidGraph, newParent.Name(), n.name)
	}
	for _, m := range n.dist.Members() {
		if m.Node != oldParent {
			continue
		}
		if err := n.dist.SetMember(m.Name, newParent); err != nil {
			return err
		}
	}

	oldParent.RemoveChildNode(n)
	newParent.AddChildNode(n)
	n.RemoveParentNode(oldParent)
	n.AddParentNode(newParent)

	if !n.clamped {
		n.touchMe()
	}
	return nil
}

// AreDistributionParamsTouched reports whether any non-constant parameter is
// currently touched.
func (n *StochasticNode) AreDistributionParamsTouched() bool {
	for _, m := range n.dist.Members() {
		if m.Node.Kind() == KindConstant {
			continue
		}
		if m.Node.IsTouched() {
			return true
		}
	}
	return false
}

// CloneDAG returns the clone of n in clones, creating it (and the clones of
// everything reachable from n) if needed. The clone shares value storage
// with n until either side writes.
func (n *StochasticNode) CloneDAG(clones *CloneMap) Node {
	if c, ok := clones.Lookup(n); ok {
		return c
	}
	cp := &StochasticNode{
		nodeBase:           newBase(n.name),
		dist:               n.dist.Clone(),
		value:              n.value.Share(),
		stored:             n.stored.Share(),
		lnProb:             n.lnProb,
		storedLnProb:       n.storedLnProb,
		hasStoredLnProb:    n.hasStoredLnProb,
		needsRecalculation: n.needsRecalculation,
		clamped:            n.clamped,
		instantiated:       n.instantiated,
	}
	cp.touched = n.touched
	clones.register(n, cp)

	for _, m := range n.dist.Members() {
		pc := m.Node.CloneDAG(clones)
		if err := cp.dist.SetMember(m.Name, pc); err != nil {
			panic(fmt.Sprintf("dag: rebinding %q of %q: %v", m.Name, n.name, err))
		}
		cp.AddParentNode(pc)
		pc.AddChildNode(cp)
	}

	n.cloneChildren(clones)
	return cp
}

// Destroy detaches n from its parents and releases the owned state.
func (n *StochasticNode) Destroy() {
	unwire(n)
	n.value.Release()
	n.stored.Release()
	n.dist = nil
}

// DebugInfo describes the node's full state.
func (n *StochasticNode) DebugInfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "StochasticNode %q:\n", n.name)
	fmt.Fprintf(&sb, "Clamped      = %t\n", n.clamped)
	fmt.Fprintf(&sb, "Touched      = %t\n", n.touched)
	fmt.Fprintf(&sb, "Distribution = %v\n", n.dist)
	fmt.Fprintf(&sb, "Value        = %s\n", n.value.Get())
	if n.stored.IsEmpty() {
		sb.WriteString("Stored value = NULL\n")
	} else {
		fmt.Fprintf(&sb, "Stored value = %s\n", n.stored.Get())
	}
	fmt.Fprintf(&sb, "lnProb       = %g\n", n.lnProb)
	return sb.String()
}

func (n *StochasticNode) String() string {
	return fmt.Sprintf("%s ~ %v = %s", n.name, n.dist, n.value.Get())
}
