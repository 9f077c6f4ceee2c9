package engine_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/engine"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
	"github.com/gyaneshwarpardhi/phylodag/internal/sample"
)

const rateYAML = `
version: v1
model:
  sinks: [obs]
  nodes:
    - name: one
      constant: 1
      type: PositiveReal
    - name: rate
      distribution: exponential
      params: {rate: one}
    - name: obs
      distribution: exponential
      params: {rate: rate}
      observed: 0.5
moves:
  - {type: scale, node: rate, lambda: 0.8}
`

func template(t *testing.T) *engine.Template {
	t.Helper()
	cfg, err := config.Parse([]byte(rateYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, _, err := model.Build(cfg.Model, dist.DefaultRegistry(), rand.New(rand.NewPCG(cfg.Run.Seed, 0)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return engine.NewTemplate(m, cfg.Moves)
}

func newEngine(t *testing.T, tpl *engine.Template, conf config.EngineConf) *engine.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	e := engine.New(ctx, tpl, conf, nil)
	t.Cleanup(func() {
		e.Shutdown()
		cancel()
	})
	return e
}

var conf = config.EngineConf{ChainWorkers: 2, QueueDepth: 8, RunTimeoutMs: 30000}

func TestRun_CollectsEveryChain(t *testing.T) {
	e := newEngine(t, template(t), conf)

	res, err := e.Run(context.Background(), engine.RunRequest{Chains: 3, Generations: 200, SampleEvery: 50, Seed: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Chains) != 3 {
		t.Fatalf("expected 3 chain results, got %d", len(res.Chains))
	}
	for i, c := range res.Chains {
		if c.Chain != i {
			t.Errorf("result %d belongs to chain %d", i, c.Chain)
		}
		if c.Error != "" {
			t.Errorf("chain %d failed: %s", i, c.Error)
		}
		if c.Generations != 200 {
			t.Errorf("chain %d ran %d generations", i, c.Generations)
		}
		if len(c.Samples) != 5 {
			t.Errorf("chain %d: expected 5 samples, got %d", i, len(c.Samples))
		}
		if len(c.Moves) != 1 || c.Moves[0].Tried != 200 {
			t.Errorf("chain %d: unexpected move stats %+v", i, c.Moves)
		}
	}
	if res.RunID == "" {
		t.Error("run id missing")
	}
}

func TestRun_SeedsAreReproducible(t *testing.T) {
	e := newEngine(t, template(t), conf)
	req := engine.RunRequest{Chains: 2, Generations: 300, SampleEvery: 300, Seed: 99}

	a, err := e.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := e.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := range a.Chains {
		if a.Chains[i].LnPosterior != b.Chains[i].LnPosterior {
			t.Errorf("chain %d diverged: %v vs %v", i, a.Chains[i].LnPosterior, b.Chains[i].LnPosterior)
		}
	}
	if a.Chains[0].Samples[1].Values["rate"] == a.Chains[1].Samples[1].Values["rate"] {
		t.Error("chains with different streams ended in the same state")
	}
}

func TestRun_TemplateUntouched(t *testing.T) {
	tpl := template(t)
	var before float64
	_ = tpl.Inspect(func(m *model.Model) error {
		before = m.LnProbability()
		return nil
	})

	e := newEngine(t, tpl, conf)
	if _, err := e.Run(context.Background(), engine.RunRequest{Chains: 2, Generations: 100, SampleEvery: 10}); err != nil {
		t.Fatalf("run: %v", err)
	}
	_ = tpl.Inspect(func(m *model.Model) error {
		if got := m.LnProbability(); got != before {
			t.Errorf("template changed: %v -> %v", before, got)
		}
		return nil
	})
}

func TestRun_Stream(t *testing.T) {
	e := newEngine(t, template(t), conf)

	var mu sync.Mutex
	perChain := map[int]int{}
	res, err := e.Run(context.Background(), engine.RunRequest{
		Chains: 2, Generations: 100, SampleEvery: 10,
		Stream: func(s sample.Sample) {
			mu.Lock()
			perChain[s.Chain]++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if perChain[0] != 11 || perChain[1] != 11 {
		t.Errorf("expected 11 streamed samples per chain, got %v", perChain)
	}
	if len(res.Chains[0].Samples) != 0 {
		t.Error("streamed samples must not be collected")
	}
}

func TestRun_NoModel(t *testing.T) {
	e := newEngine(t, nil, conf)
	if _, err := e.Run(context.Background(), engine.RunRequest{Chains: 1}); !errors.Is(err, engine.ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}

	e.SwapModel(template(t))
	if _, err := e.Run(context.Background(), engine.RunRequest{Chains: 1, Generations: 10, SampleEvery: 5}); err != nil {
		t.Fatalf("run after swap: %v", err)
	}
}

func TestRun_QueueFull(t *testing.T) {
	e := newEngine(t, template(t), config.EngineConf{ChainWorkers: 1, QueueDepth: 1, RunTimeoutMs: 30000})

	_, err := e.Run(context.Background(), engine.RunRequest{Chains: 5, Generations: 1_000_000, SampleEvery: 1_000_000})
	if !errors.Is(err, engine.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	e := newEngine(t, template(t), config.EngineConf{ChainWorkers: 1, QueueDepth: 1, RunTimeoutMs: 1})

	_, err := e.Run(context.Background(), engine.RunRequest{Chains: 1, Generations: 100_000_000, SampleEvery: 100_000_000})
	if !errors.Is(err, engine.ErrRunTimeout) {
		t.Fatalf("expected ErrRunTimeout, got %v", err)
	}
}

func TestRun_BadMoveOverride(t *testing.T) {
	e := newEngine(t, template(t), conf)
	_, err := e.Run(context.Background(), engine.RunRequest{
		Chains: 1,
		Moves:  []config.MoveDef{{Type: "slide", Node: "obs", Delta: 1, Weight: 1}},
	})
	if err == nil {
		t.Fatal("expected an error for a move on an observed node")
	}
}
