package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/mcmc"
	"github.com/gyaneshwarpardhi/phylodag/internal/metrics"
	"github.com/gyaneshwarpardhi/phylodag/internal/sample"
)

var tracer = otel.Tracer("phylodag.engine")

var (
	ErrNoModel    = errors.New("no model loaded")
	ErrQueueFull  = errors.New("chain queue full")
	ErrRunTimeout = errors.New("run timed out")
)

// RunRequest describes one sampler run.
type RunRequest struct {
	Chains      int
	Generations int
	SampleEvery int
	Seed        uint64
	// Moves overrides the template's moves when set.
	Moves []config.MoveDef
	// Stream, when set, receives samples as they are taken instead of
	// collecting them in the result. It is called from chain workers concurrently.
	Stream func(sample.Sample)
}

// ChainResult is the outcome of one chain.
type ChainResult struct {
	Chain       int              `json:"chain"`
	Generations int              `json:"generations"`
	LnPosterior float64          `json:"ln_posterior"`
	Moves       []mcmc.MoveStats `json:"moves"`
	Samples     []sample.Sample  `json:"samples,omitempty"`
	DurationMs  int64            `json:"duration_ms"`
	Error       string           `json:"error,omitempty"`
}

// RunResult is the outcome of a run, chains in index order.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Chains     []*ChainResult `json:"chains"`
	DurationMs int64          `json:"duration_ms"`
}

// Engine runs independent chains over clones of the current template.
type Engine struct {
	template  atomic.Pointer[Template]
	chainPool *chainPool[*chainWork]
	conf      *config.EngineConf
	log       *slog.Logger
}

type chainWork struct {
	ctx         context.Context
	chain       *mcmc.Chain
	generations int
	sampleEvery int
	stream      func(sample.Sample)
	resultC     chan *ChainResult
}

// New creates an Engine using conf and starts the chain pool. tpl may be nil
// until a model is loaded.
func New(ctx context.Context, tpl *Template, conf config.EngineConf, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{conf: &conf, log: log}
	if tpl != nil {
		e.template.Store(tpl)
	}
	e.chainPool = newChainPool(ctx, conf.ChainWorkers, conf.QueueDepth,
		func(_ context.Context, w *chainWork) { w.resultC <- e.runChain(w) },
		func(w *chainWork, err error) {
			metrics.ChainsFailed.Inc()
			e.log.Error("chain aborted", "chain", w.chain.ID(), "error", err)
			w.resultC <- &ChainResult{Chain: w.chain.ID(), Error: err.Error()}
		},
	)
	return e
}

// SwapModel atomically replaces the template (used on hot-reload). Runs in
// flight keep their clones.
func (e *Engine) SwapModel(tpl *Template) {
	e.template.Store(tpl)
}

// Template returns the current template, or nil.
func (e *Engine) Template() *Template {
	return e.template.Load()
}

// Run clones the template once per chain, runs the chains on the pool and
// waits for all of them. Chain i is seeded with PCG(Seed, i).
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	tpl := e.template.Load()
	if tpl == nil {
		return nil, ErrNoModel
	}
	if req.Chains < 1 {
		req.Chains = 1
	}
	moves := req.Moves
	if len(moves) == 0 {
		moves = tpl.Moves()
	}

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.chains", req.Chains),
			attribute.Int("run.generations", req.Generations),
		),
	)
	defer span.End()

	start := time.Now()
	timeout := time.Duration(e.conf.RunTimeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := e.log.With("run_id", runID)
	resultC := make(chan *ChainResult, req.Chains)
	for i := 0; i < req.Chains; i++ {
		m := tpl.Clone()
		mv, err := mcmc.NewMoves(moves, m)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		chain, err := mcmc.NewChain(i, m, mv, rand.New(rand.NewPCG(req.Seed, uint64(i))), log)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		w := &chainWork{
			ctx:         runCtx,
			chain:       chain,
			generations: req.Generations,
			sampleEvery: req.SampleEvery,
			stream:      req.Stream,
			resultC:     resultC,
		}
		if !e.chainPool.TrySubmit(w) {
			metrics.RunsRejected.Inc()
			span.SetStatus(codes.Error, ErrQueueFull.Error())
			return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.chainPool.Depth())
		}
	}
	metrics.RunsSubmitted.Inc()
	e.updateQueueGauge()
	log.Info("run submitted", "chains", req.Chains, "generations", req.Generations, "seed", req.Seed)

	result := &RunResult{RunID: runID, Chains: make([]*ChainResult, req.Chains)}
	fail := func() (*RunResult, error) {
		err := runCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %v", ErrRunTimeout, timeout)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for received := 0; received < req.Chains; received++ {
		select {
		case res := <-resultC:
			result.Chains[res.Chain] = res
		case <-runCtx.Done():
			return fail()
		}
	}
	// A chain cut short by the deadline still reports a result.
	if runCtx.Err() != nil {
		return fail()
	}
	result.DurationMs = time.Since(start).Milliseconds()
	e.updateQueueGauge()

	for _, c := range result.Chains {
		if c.Error != "" {
			span.SetStatus(codes.Error, "chain failed")
			break
		}
	}
	log.Info("run finished", "duration_ms", result.DurationMs)
	return result, nil
}

func (e *Engine) runChain(w *chainWork) *ChainResult {
	ctx, span := tracer.Start(w.ctx, "engine.chain",
		trace.WithAttributes(attribute.Int("chain.id", w.chain.ID())),
	)
	defer span.End()
	metrics.ChainsStarted.Inc()
	e.updateQueueGauge()

	start := time.Now()
	res := &ChainResult{Chain: w.chain.ID()}
	emit := w.stream
	if emit == nil {
		emit = func(s sample.Sample) { res.Samples = append(res.Samples, s) }
	}

	err := w.chain.Run(ctx, w.generations, w.sampleEvery, emit)
	res.Generations = w.chain.Generation()
	res.LnPosterior = w.chain.LnPosterior()
	res.Moves = w.chain.Stats()
	res.DurationMs = time.Since(start).Milliseconds()
	span.SetAttributes(attribute.Int("chain.generations", res.Generations))
	if err != nil {
		metrics.ChainsFailed.Inc()
		res.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res
	}
	metrics.ChainsCompleted.Inc()
	return res
}

// QueueUtilization returns queue used / capacity (0-1).
func (e *Engine) QueueUtilization() float64 {
	if e.chainPool.Depth() == 0 {
		return 0
	}
	return float64(e.chainPool.Pending()) / float64(e.chainPool.Depth())
}

// ChainsRunning is the number of chains currently on a worker.
func (e *Engine) ChainsRunning() int {
	return e.chainPool.Active()
}

func (e *Engine) updateQueueGauge() {
	metrics.QueueUtilization.Set(e.QueueUtilization())
}

// Shutdown drains the chain pool gracefully.
func (e *Engine) Shutdown() {
	e.chainPool.Drain()
}
