package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/engine"
	"github.com/gyaneshwarpardhi/phylodag/internal/sample"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		run     config.RunConf
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured chains and write samples as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("chains") {
				cfg.Run.Chains = run.Chains
			}
			if flags.Changed("generations") {
				cfg.Run.Generations = run.Generations
			}
			if flags.Changed("sample-every") {
				cfg.Run.SampleEvery = run.SampleEvery
			}
			if flags.Changed("seed") {
				cfg.Run.Seed = run.Seed
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runChains(ctx, cfg, out)
		},
	}
	cmd.Flags().IntVar(&run.Chains, "chains", 1, "Number of independent chains")
	cmd.Flags().IntVar(&run.Generations, "generations", 1000, "Generations per chain")
	cmd.Flags().IntVar(&run.SampleEvery, "sample-every", 100, "Sampling interval in generations")
	cmd.Flags().Uint64Var(&run.Seed, "seed", 0, "Random seed; chain i uses stream i")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write samples to this file instead of stdout")
	return cmd
}

func runChains(ctx context.Context, cfg *config.ModelConfig, out io.Writer) error {
	tpl, err := engine.TemplateFromConfig(cfg, dist.DefaultRegistry())
	if err != nil {
		return err
	}
	if cfg.Run.Chains > cfg.Engine.QueueDepth {
		cfg.Engine.QueueDepth = cfg.Run.Chains
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eng := engine.New(poolCtx, tpl, cfg.Engine, slog.Default())
	defer eng.Shutdown()

	var (
		mu     sync.Mutex
		enc    = json.NewEncoder(out)
		encErr error
	)
	res, err := eng.Run(ctx, engine.RunRequest{
		Chains:      cfg.Run.Chains,
		Generations: cfg.Run.Generations,
		SampleEvery: cfg.Run.SampleEvery,
		Seed:        cfg.Run.Seed,
		Stream: func(s sample.Sample) {
			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(s); err != nil && encErr == nil {
				encErr = err
			}
		},
	})
	if err != nil {
		return err
	}
	if encErr != nil {
		return fmt.Errorf("write samples: %w", encErr)
	}

	failed := 0
	for _, c := range res.Chains {
		if c.Error != "" {
			failed++
			slog.Error("chain failed", "chain", c.Chain, "error", c.Error)
			continue
		}
		for _, m := range c.Moves {
			slog.Info("move acceptance", "chain", c.Chain, "move", m.Move, "rate", m.AcceptanceRate())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d chains failed", failed, len(res.Chains))
	}
	return nil
}
