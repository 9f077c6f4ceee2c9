package dist

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
)

// ErrUnknownDistribution is returned for a name no factory is registered under.
var ErrUnknownDistribution = errors.New("unknown distribution")

// Factory builds a distribution from its parameters, in declaration order.
type Factory func(args []dag.Node) dag.Distribution

// Spec describes a registered distribution.
type Spec struct {
	Name   string
	Params []string
	New    Factory
}

// Registry maps distribution names to their factories.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// DefaultRegistry returns a registry holding every distribution in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Spec{Name: "uniform", Params: []string{"min", "max"},
		New: func(a []dag.Node) dag.Distribution { return NewUniform(a[0], a[1]) }})
	r.Register(Spec{Name: "loguniform", Params: []string{"min", "max"},
		New: func(a []dag.Node) dag.Distribution { return NewLogUniform(a[0], a[1]) }})
	r.Register(Spec{Name: "normal", Params: []string{"mean", "sd"},
		New: func(a []dag.Node) dag.Distribution { return NewNormal(a[0], a[1]) }})
	r.Register(Spec{Name: "lognormal", Params: []string{"mu", "sigma"},
		New: func(a []dag.Node) dag.Distribution { return NewLogNormal(a[0], a[1]) }})
	r.Register(Spec{Name: "exponential", Params: []string{"rate"},
		New: func(a []dag.Node) dag.Distribution { return NewExponential(a[0]) }})
	r.Register(Spec{Name: "gamma", Params: []string{"shape", "rate"},
		New: func(a []dag.Node) dag.Distribution { return NewGamma(a[0], a[1]) }})
	r.Register(Spec{Name: "beta", Params: []string{"alpha", "beta"},
		New: func(a []dag.Node) dag.Distribution { return NewBeta(a[0], a[1]) }})
	r.Register(Spec{Name: "dirichlet", Params: []string{"alpha"},
		New: func(a []dag.Node) dag.Distribution { return NewDirichlet(a[0]) }})
	r.Register(Spec{Name: "categorical", Params: []string{"weights"},
		New: func(a []dag.Node) dag.Distribution { return NewCategorical(a[0]) }})
	r.Register(Spec{Name: "pointmass", Params: []string{"value"},
		New: func(a []dag.Node) dag.Distribution { return NewPointMass(a[0]) }})
	return r
}

// Register adds a distribution. Panics on duplicate name to surface misconfiguration early.
func (r *Registry) Register(s Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[s.Name]; exists {
		panic(fmt.Sprintf("dist registry: duplicate distribution %q", s.Name))
	}
	r.specs[s.Name] = s
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownDistribution, name)
	}
	return s, nil
}

// New builds the named distribution with args keyed by parameter name.
// Every declared parameter must be supplied and nothing else may be.
func (r *Registry) New(name string, args map[string]dag.Node) (dag.Distribution, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	ordered := make([]dag.Node, len(s.Params))
	for i, p := range s.Params {
		n, ok := args[p]
		if !ok || n == nil {
			return nil, fmt.Errorf("%s: missing parameter %q", name, p)
		}
		ordered[i] = n
	}
	for p := range args {
		if !slices.Contains(s.Params, p) {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, name, p)
		}
	}
	return s.New(ordered), nil
}

// Names returns all registered distribution names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specs))
	for k := range r.specs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
