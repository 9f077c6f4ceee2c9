package mcmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/metrics"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
	"github.com/gyaneshwarpardhi/phylodag/internal/sample"
)

// ErrNoMoves is returned when a chain has nothing to propose.
var ErrNoMoves = errors.New("chain has no moves with positive weight")

// MoveStats counts proposals and acceptances of one move.
type MoveStats struct {
	Move     string `json:"move"`
	Tried    int    `json:"tried"`
	Accepted int    `json:"accepted"`
}

// AcceptanceRate returns Accepted/Tried, or 0 before the first proposal.
func (s MoveStats) AcceptanceRate() float64 {
	if s.Tried == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Tried)
}

// Chain is a Metropolis-Hastings sampler over one model. A chain owns its
// model and is not safe for concurrent use.
type Chain struct {
	id         int
	model      *model.Model
	stochastic []*dag.StochasticNode
	moves      []Move
	cum        []float64
	r          *rand.Rand
	log        *slog.Logger
	stats      []MoveStats
	generation int
}

// NewChain creates a chain. Every move must target a node of m.
func NewChain(id int, m *model.Model, moves []Move, r *rand.Rand, log *slog.Logger) (*Chain, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Chain{
		id:         id,
		model:      m,
		stochastic: m.StochasticNodes(),
		r:          r,
		log:        log.With("chain", id),
	}
	total := 0.0
	for _, mv := range moves {
		if m.IndexOf(mv.Target()) < 0 {
			return nil, fmt.Errorf("%s: %w", mv.Name(), model.ErrNodeNotInModel)
		}
		if mv.Weight() <= 0 {
			continue
		}
		total += mv.Weight()
		c.moves = append(c.moves, mv)
		c.cum = append(c.cum, total)
		c.stats = append(c.stats, MoveStats{Move: mv.Name()})
	}
	if len(c.moves) == 0 {
		return nil, ErrNoMoves
	}
	return c, nil
}

// ID returns the chain index.
func (c *Chain) ID() int { return c.id }

// Model returns the model the chain samples.
func (c *Chain) Model() *model.Model { return c.model }

// Generation returns the number of completed generations.
func (c *Chain) Generation() int { return c.generation }

// LnPosterior returns the summed log-probability of every stochastic node.
func (c *Chain) LnPosterior() float64 { return c.model.LnProbability() }

// Stats returns a copy of the per-move counters.
func (c *Chain) Stats() []MoveStats {
	out := make([]MoveStats, len(c.stats))
	copy(out, c.stats)
	return out
}

func (c *Chain) pick() int {
	u := c.r.Float64() * c.cum[len(c.cum)-1]
	for i, w := range c.cum {
		if u < w {
			return i
		}
	}
	return len(c.cum) - 1
}

// Step performs one proposal and accepts or rejects it. On return no node
// of the model is touched.
func (c *Chain) Step() (bool, error) {
	i := c.pick()
	mv := c.moves[i]
	target := mv.Target()

	lnHastings, err := mv.Perform(c.r)
	if err != nil {
		dag.Restore(target)
		return false, fmt.Errorf("%s: %w", mv.Name(), err)
	}

	ratio := lnHastings + target.GetLnProbabilityRatio()
	affected := dag.Affected(target)
	for _, s := range c.stochastic {
		if affected.Contains(s) {
			ratio += s.GetLnProbabilityRatio()
		}
	}

	c.stats[i].Tried++
	// NaN compares false on both sides and is rejected.
	accepted := ratio >= 0 || math.Log(c.r.Float64()) < ratio
	if accepted {
		dag.Keep(target)
		c.stats[i].Accepted++
		metrics.ProposalsTotal.WithLabelValues(mv.Kind(), "accepted").Inc()
	} else {
		dag.Restore(target)
		metrics.ProposalsTotal.WithLabelValues(mv.Kind(), "rejected").Inc()
	}
	return accepted, nil
}

// Sample records the current state.
func (c *Chain) Sample() sample.Sample {
	return sample.Take(c.id, c.generation, c.LnPosterior(), c.model.DagNodes())
}

// Run advances the chain by generations, emitting a sample before the first
// generation and after every sampleEvery-th. It stops early when ctx is done.
func (c *Chain) Run(ctx context.Context, generations, sampleEvery int, emit func(sample.Sample)) error {
	if sampleEvery < 1 {
		sampleEvery = 1
	}
	chainLabel := strconv.Itoa(c.id)
	record := func() {
		s := c.Sample()
		metrics.LnPosterior.WithLabelValues(chainLabel).Set(s.LnPosterior)
		if emit != nil {
			emit(s)
		}
	}

	if c.generation == 0 {
		record()
	}
	c.log.Debug("chain started", "generations", generations, "ln_posterior", c.LnPosterior())
	for g := 0; g < generations; g++ {
		if err := ctx.Err(); err != nil {
			c.log.Info("chain stopped", "generation", c.generation, "reason", err)
			return err
		}
		start := time.Now()
		if _, err := c.Step(); err != nil {
			return fmt.Errorf("chain %d generation %d: %w", c.id, c.generation+1, err)
		}
		metrics.GenerationDuration.Observe(float64(time.Since(start).Microseconds()))
		c.generation++
		if c.generation%sampleEvery == 0 {
			record()
		}
	}

	for _, s := range c.stats {
		c.log.Debug("move summary", "move", s.Move, "tried", s.Tried, "accepted", s.Accepted,
			"rate", s.AcceptanceRate())
	}
	c.log.Info("chain finished", "generations", c.generation, "ln_posterior", c.LnPosterior())
	return nil
}
