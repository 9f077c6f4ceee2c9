package engine

import (
	"math/rand/v2"
	"sync"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
)

// Template is the model every run starts from, with its default moves.
// Runs sample private clones; the template itself is never mutated.
type Template struct {
	mu    sync.Mutex
	model *model.Model
	moves []config.MoveDef
}

func NewTemplate(m *model.Model, moves []config.MoveDef) *Template {
	return &Template{model: m, moves: moves}
}

// TemplateFromConfig builds the model declared by cfg. Initial values are
// drawn from a stream seeded by cfg.Run.Seed that no chain uses.
func TemplateFromConfig(cfg *config.ModelConfig, reg *dist.Registry) (*Template, error) {
	r := rand.New(rand.NewPCG(cfg.Run.Seed, ^uint64(0)))
	m, _, err := model.Build(cfg.Model, reg, r)
	if err != nil {
		return nil, err
	}
	return NewTemplate(m, cfg.Moves), nil
}

// Moves returns the default moves.
func (t *Template) Moves() []config.MoveDef { return t.moves }

// Clone returns an independent copy of the model.
func (t *Template) Clone() *model.Model {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Clone()
}

// Inspect calls fn with the template model while holding its lock.
// fn must not keep the model.
func (t *Template) Inspect(fn func(*model.Model) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.model)
}
